package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const boltBucketLocal = "local" // key: storage key -> JSON value

type Bolt struct {
	storage *bbolt.DB
	logger  *zap.Logger
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string, logger *zap.Logger) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	instance, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketLocal))
		return err
	}); err != nil {
		_ = instance.Close()
		return nil, err
	}

	logger.Debug("Opened storage", zap.String("path", path))
	return &Bolt{storage: instance, logger: logger}, nil
}

func (b *Bolt) Close() error {
	return b.storage.Close()
}

func (b *Bolt) Get(key string, v any) (bool, error) {
	var raw []byte
	err := b.storage.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketLocal))
		if bucket == nil {
			return ErrClosed
		}
		if data := bucket.Get([]byte(key)); data != nil {
			// bbolt memory is only valid for the life of the transaction.
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (b *Bolt) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = b.storage.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketLocal)).Put([]byte(key), raw)
	})
	if err != nil {
		b.logger.Error("Failed to write storage key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes all keys in a single transaction.
func (b *Bolt) Delete(keys ...string) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketLocal))
		for _, k := range keys {
			if err := bucket.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// Keys lists the stored keys, for diagnostics.
func (b *Bolt) Keys() ([]string, error) {
	var keys []string
	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketLocal)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
