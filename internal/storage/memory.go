package storage

import (
	"bytes"
	"sort"
	"sync"
)

// Memory is a Storage kept entirely in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) WALName() string {
	return ""
}

func (m *Memory) Set(k, v []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(k)] = append([]byte(nil), v...)
	return nil
}

func (m *Memory) Get(k []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(k)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Delete(k []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(k))
	return nil
}

// ForEach iterates over a snapshot, so fn may modify the storage.
func (m *Memory) ForEach(fn func(k, v []byte) error) error {
	m.mu.RLock()
	keys := make([][]byte, 0, len(m.data))
	values := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		keys = append(keys, []byte(k))
		values[k] = v
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	for _, k := range keys {
		if err := fn(k, values[string(k)]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *Memory) Flush() error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// snapshot copies the current contents.
func (m *Memory) snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
