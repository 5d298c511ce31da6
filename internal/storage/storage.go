// Package storage provides the key-value backends that persist the documents
// of an index. Postings are never stored; they are rebuilt from documents.
package storage

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultEngine is used when no storage engine is configured.
const DefaultEngine = "bolt"

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Storage is an ordered byte key-value store.
type Storage interface {
	Set(k, v []byte) error
	Get(k []byte) ([]byte, error)
	Delete(k []byte) error
	// ForEach visits every pair in key order. Returning an error stops the
	// iteration and is passed back to the caller.
	ForEach(fn func(k, v []byte) error) error
	// Clear removes every pair.
	Clear() error
	// Flush makes pending writes durable. Backends that write through are no-ops.
	Flush() error
	Close() error
	// WALName is the path of the backing file, empty for in-memory storage.
	WALName() string
}

var supportedStorage = map[string]func(path string) (Storage, error){
	"bolt":   openBoltStorage,
	"kv":     openKVStorage,
	"gob":    openGobStorage,
	"memory": func(string) (Storage, error) { return NewMemory(), nil },
}

// FileName returns the name of the file an engine keeps its data in.
func FileName(engine string) string {
	switch engine {
	case "memory":
		return ""
	case "":
		return "documents." + DefaultEngine
	default:
		return "documents." + engine
	}
}

// Open opens or creates the storage at path using the named engine.
func Open(path, engine string) (Storage, error) {
	if engine == "" {
		engine = DefaultEngine
	}
	fn, ok := supportedStorage[engine]
	if !ok {
		return nil, fmt.Errorf("unsupported storage engine %q (supported: %v)", engine, Engines())
	}
	return fn(path)
}

// Engines lists the registered engine names.
func Engines() []string {
	names := make([]string, 0, len(supportedStorage))
	for name := range supportedStorage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
