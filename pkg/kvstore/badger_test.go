package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerKVStore_CRUD(t *testing.T) {
	for name, cfg := range map[string]BadgerConfig{
		"in memory": {InMemory: true},
		"on disk":   {DBPath: filepath.Join(t.TempDir(), "db")},
		"encrypted": {DBPath: filepath.Join(t.TempDir(), "enc"), EncryptionKey: generateRandomKey(32)},
	} {
		t.Run(name, func(t *testing.T) {
			store, err := NewBadgerKVStore(cfg)
			require.NoError(t, err)
			defer store.Close()

			var _ KVStore = store

			require.NoError(t, store.Put("outcome/1/b", []byte("2")))
			require.NoError(t, store.Put("outcome/1/a", []byte("1")))
			require.NoError(t, store.Put("outcome/2/a", []byte("3")))
			require.NoError(t, store.Put("other", []byte("4")))

			v, err := store.Get("outcome/1/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			keys, err := store.KeysWithPrefix("outcome/1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"outcome/1/a", "outcome/1/b"}, keys)

			all, err := store.Keys()
			require.NoError(t, err)
			assert.Len(t, all, 4)

			require.NoError(t, store.Delete("outcome/1/a"))
			_, err = store.Get("outcome/1/a")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.Error(t, store.Backup())
		})
	}
}

func TestBadgerKVStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	key := generateRandomKey(16)

	store, err := NewBadgerKVStore(BadgerConfig{DBPath: path, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, store.Put("k", []byte("v")))
	require.NoError(t, store.Close())

	_, err = NewBadgerKVStore(BadgerConfig{DBPath: path, EncryptionKey: generateRandomKey(16)})
	assert.Error(t, err)

	store, err = NewBadgerKVStore(BadgerConfig{DBPath: path, EncryptionKey: key})
	require.NoError(t, err)
	defer store.Close()
	v, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
