package kvstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/luxfi/signer/pkg/logger"
)

var (
	ErrEncryptionKeyNotProvided       = errors.New("encryption key not provided")
	ErrBackupEncryptionKeyNotProvided = errors.New("backup encryption key not provided")
)

const encryptedIndexCacheSize = 64 << 20

// BadgerKVStore is an implementation of the KVStore interface using BadgerDB.
type BadgerKVStore struct {
	db             *badger.DB
	BackupExecutor *BadgerBackupExecutor
}

type BadgerConfig struct {
	NodeID string
	// DBPath is ignored when InMemory is set.
	DBPath   string
	InMemory bool
	// EncryptionKey enables encryption at rest; 16, 24 or 32 bytes.
	EncryptionKey []byte
	// BackupEncryptionKey enables encrypted backups into BackupDir.
	BackupEncryptionKey []byte
	BackupDir           string
}

// NewBadgerKVStore opens (or creates) the store described by config.
func NewBadgerKVStore(config BadgerConfig) (*BadgerKVStore, error) {
	db, err := openBadger(config.DBPath, config.InMemory, config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to badger successfully!", "path", config.DBPath, "in_memory", config.InMemory, "encrypted", len(config.EncryptionKey) > 0)

	store := &BadgerKVStore{db: db}
	if len(config.BackupEncryptionKey) > 0 {
		store.BackupExecutor, err = NewBadgerBackupExecutor(config.NodeID, db, config.BackupEncryptionKey, config.BackupDir)
		if err != nil {
			db.Close() //nolint:errcheck
			return nil, err
		}
	}
	return store, nil
}

func openBadger(path string, inMemory bool, encryptionKey []byte) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if len(encryptionKey) > 0 {
		opts = opts.WithEncryptionKey(encryptionKey).WithIndexCacheSize(encryptedIndexCacheSize)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open badger: %w", err)
	}
	return db, nil
}

// Put stores a key-value pair in BadgerDB.
func (b *BadgerKVStore) Put(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get retrieves the value associated with a key from BadgerDB.
func (b *BadgerKVStore) Get(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, err
}

func (b *BadgerKVStore) Keys() ([]string, error) {
	return b.KeysWithPrefix("")
}

// KeysWithPrefix lists keys starting with prefix in byte order.
func (b *BadgerKVStore) KeysWithPrefix(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes a key-value pair from BadgerDB.
func (b *BadgerKVStore) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerKVStore) Backup() error {
	if b.BackupExecutor == nil {
		return errors.New("backup executor is not initialized")
	}
	return b.BackupExecutor.Execute()
}

// Close closes the BadgerDB.
func (b *BadgerKVStore) Close() error {
	return b.db.Close()
}
