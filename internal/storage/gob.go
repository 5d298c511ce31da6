package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/gcbaptista/go-search-core/internal/persistence"
)

// gobStorage keeps pairs in memory and writes the whole set to a single gob
// file on Flush and Close.
type gobStorage struct {
	*Memory
	path string
}

func openGobStorage(path string) (Storage, error) {
	s := &gobStorage{Memory: NewMemory(), path: path}
	var data map[string][]byte
	err := persistence.LoadGob(path, &data)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to load gob storage %s: %w", path, err)
	default:
		s.data = data
		if s.data == nil {
			s.data = make(map[string][]byte)
		}
	}
	return s, nil
}

func (s *gobStorage) WALName() string {
	return s.path
}

func (s *gobStorage) Flush() error {
	return persistence.SaveGob(s.path, s.snapshot())
}

func (s *gobStorage) Close() error {
	return s.Flush()
}
