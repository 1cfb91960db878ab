package kvstore

import "errors"

var ErrNotFound = errors.New("kvstore: key not found")

// KVStore is a byte-valued store keyed by strings.
type KVStore interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Keys() ([]string, error)
	KeysWithPrefix(prefix string) ([]string, error)
	Delete(key string) error
	Close() error
}
