package storage

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var documentsBucket = []byte("documents")

type boltStorage struct {
	db *bolt.DB
}

func openBoltStorage(path string) (Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt storage %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket in %s: %w", path, err)
	}
	return &boltStorage{db: db}, nil
}

func (s *boltStorage) WALName() string {
	return s.db.Path()
}

// Set uses bolt's batch API so that concurrent writers share a transaction.
func (s *boltStorage) Set(k, v []byte) error {
	return s.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put(k, v)
	})
}

func (s *boltStorage) Get(k []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(documentsBucket).Get(k)
		if v == nil {
			return ErrKeyNotFound
		}
		// Bolt values are only valid for the life of the transaction
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

func (s *boltStorage) Delete(k []byte) error {
	return s.db.Batch(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Delete(k)
	})
}

func (s *boltStorage) ForEach(fn func(k, v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(fn)
	})
}

func (s *boltStorage) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(documentsBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(documentsBucket)
		return err
	})
}

func (s *boltStorage) Flush() error {
	return s.db.Sync()
}

func (s *boltStorage) Close() error {
	return s.db.Close()
}
