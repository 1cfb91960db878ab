package kvstore

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/encryption"
)

// Helper function to generate random encryption key
func generateRandomKey(size int) []byte {
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

func newTestStore(t *testing.T, dbPath, backupDir string, encKey, backupKey []byte) *BadgerKVStore {
	t.Helper()
	store, err := NewBadgerKVStore(BadgerConfig{
		NodeID:              "signer-0",
		DBPath:              dbPath,
		EncryptionKey:       encKey,
		BackupEncryptionKey: backupKey,
		BackupDir:           backupDir,
	})
	require.NoError(t, err)
	return store
}

func TestBackup_ExecuteIncremental(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	store := newTestStore(t, filepath.Join(dir, "db"), backupDir, generateRandomKey(32), generateRandomKey(32))
	defer store.Close()

	require.NoError(t, store.Put("outcome/0/a", []byte("first")))
	require.NoError(t, store.Backup())

	files, err := store.BackupExecutor.SortedEncryptedBackups()
	require.NoError(t, err)
	require.Len(t, files, 1)

	// No changes, no new file.
	require.NoError(t, store.Backup())
	files, err = store.BackupExecutor.SortedEncryptedBackups()
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, store.Put("outcome/0/b", []byte("second")))
	require.NoError(t, store.Backup())
	files, err = store.BackupExecutor.SortedEncryptedBackups()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	info, err := store.BackupExecutor.LoadVersionInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Version)
	assert.NotZero(t, info.Since)
}

func TestBackup_FileFormat(t *testing.T) {
	dir := t.TempDir()
	backupKey := generateRandomKey(32)
	store := newTestStore(t, filepath.Join(dir, "db"), filepath.Join(dir, "backups"), nil, backupKey)
	defer store.Close()

	require.NoError(t, store.Put("k", []byte("v")))
	require.NoError(t, store.Backup())

	files, err := store.BackupExecutor.SortedEncryptedBackups()
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.Greater(t, len(data), len(magic)+4)
	assert.Equal(t, magic, string(data[:len(magic)]))

	metaLen := binary.BigEndian.Uint32(data[len(magic) : len(magic)+4])
	var meta BackupMeta
	require.NoError(t, json.Unmarshal(data[len(magic)+4:len(magic)+4+int(metaLen)], &meta))
	assert.Equal(t, backupAlgorithm, meta.Algo)
	assert.Equal(t, encryption.KeyID(backupKey), meta.EncryptionKeyID)
	assert.Zero(t, meta.Since)
	assert.NotZero(t, meta.NextSince)
}

func TestBackup_Restore(t *testing.T) {
	dir := t.TempDir()
	encKey := generateRandomKey(32)
	backupKey := generateRandomKey(32)
	store := newTestStore(t, filepath.Join(dir, "db"), filepath.Join(dir, "backups"), encKey, backupKey)

	require.NoError(t, store.Put("outcome/1/x", []byte("sig")))
	require.NoError(t, store.Backup())
	require.NoError(t, store.Put("outcome/1/y", []byte("key")))
	require.NoError(t, store.Backup())
	executor := store.BackupExecutor
	require.NoError(t, store.Close())

	restorePath := filepath.Join(dir, "restored")
	require.NoError(t, executor.RestoreAllBackupsEncrypted(restorePath, encKey))

	restored := newTestStore(t, restorePath, "", encKey, nil)
	defer restored.Close()

	v, err := restored.Get("outcome/1/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("sig"), v)
	v, err = restored.Get("outcome/1/y")
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), v)
}

func TestBackup_RestoreRejectsForeignKey(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, filepath.Join(dir, "db"), filepath.Join(dir, "backups"), nil, generateRandomKey(32))
	require.NoError(t, store.Put("k", []byte("v")))
	require.NoError(t, store.Backup())
	require.NoError(t, store.Close())

	other := &BadgerBackupExecutor{NodeID: "signer-0", Key: generateRandomKey(32), Dir: filepath.Join(dir, "backups")}
	err := other.RestoreAllBackupsEncrypted(filepath.Join(dir, "restored"), nil)
	assert.ErrorIs(t, err, ErrBadBackup)
}

func TestNewBackupExecutor_RequiresKey(t *testing.T) {
	_, err := NewBadgerBackupExecutor("n", nil, nil, t.TempDir())
	assert.ErrorIs(t, err, ErrBackupEncryptionKeyNotProvided)
}
