package storage

import (
	"fmt"
	"io"

	"github.com/cznic/kv"
)

type kvStorage struct {
	db *kv.DB
}

// openOrCreateKv opens the database at path, creating it when it does not exist.
func openOrCreateKv(path string, options *kv.Options) (*kv.DB, error) {
	db, errOpen := kv.Open(path, options)
	if errOpen != nil {
		var errCreate error
		db, errCreate = kv.Create(path, options)
		if errCreate != nil {
			return nil, fmt.Errorf("failed to open kv storage %s: %v; create: %w", path, errOpen, errCreate)
		}
	}
	return db, nil
}

func openKVStorage(path string) (Storage, error) {
	db, err := openOrCreateKv(path, &kv.Options{})
	if err != nil {
		return nil, err
	}
	return &kvStorage{db: db}, nil
}

func (s *kvStorage) WALName() string {
	return s.db.WALName()
}

func (s *kvStorage) Set(k, v []byte) error {
	return s.db.Set(k, v)
}

func (s *kvStorage) Get(k []byte) ([]byte, error) {
	v, err := s.db.Get(nil, k)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

func (s *kvStorage) Delete(k []byte) error {
	return s.db.Delete(k)
}

func (s *kvStorage) ForEach(fn func(k, v []byte) error) error {
	iter, err := s.db.SeekFirst()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	for {
		key, value, err := iter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
}

func (s *kvStorage) Clear() error {
	var keys [][]byte
	err := s.ForEach(func(k, _ []byte) error {
		keys = append(keys, append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.db.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *kvStorage) Flush() error {
	return nil
}

func (s *kvStorage) Close() error {
	return s.db.Close()
}
