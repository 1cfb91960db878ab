package backup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/kvstore"
)

type recordingUploader struct {
	uploaded []string
	err      error
}

func (u *recordingUploader) Upload(_ context.Context, localPath string) error {
	u.uploaded = append(u.uploaded, localPath)
	return u.err
}

func newStore(t *testing.T) *kvstore.BadgerKVStore {
	t.Helper()
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	store, err := kvstore.NewBadgerKVStore(kvstore.BadgerConfig{
		NodeID:              "signer-0",
		DBPath:              filepath.Join(dir, "db"),
		BackupEncryptionKey: key,
		BackupDir:           filepath.Join(dir, "backups"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestManager_RunBackupUploadsNewFiles(t *testing.T) {
	store := newStore(t)
	uploader := &recordingUploader{}
	m := NewManager(store.BackupExecutor, uploader, time.Hour, zerolog.Nop())

	require.NoError(t, store.Put("outcome/0/a", []byte("one")))
	files, err := m.RunBackup(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, files, uploader.uploaded)

	// Nothing changed, so nothing new to ship.
	files, err = m.RunBackup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Len(t, uploader.uploaded, 1)

	require.NoError(t, store.Put("outcome/0/b", []byte("two")))
	files, err = m.RunBackup(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Len(t, uploader.uploaded, 2)
}

func TestManager_UploadFailureKeepsLocalBackup(t *testing.T) {
	store := newStore(t)
	uploader := &recordingUploader{err: errors.New("s3 down")}
	m := NewManager(store.BackupExecutor, uploader, time.Hour, zerolog.Nop())

	require.NoError(t, store.Put("k", []byte("v")))
	files, err := m.RunBackup(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)

	local, err := store.BackupExecutor.SortedEncryptedBackups()
	require.NoError(t, err)
	assert.Equal(t, files, local)
}

func TestManager_StartStop(t *testing.T) {
	store := newStore(t)
	m := NewManager(store.BackupExecutor, nil, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, store.Put("k", []byte("v")))

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		files, err := store.BackupExecutor.SortedEncryptedBackups()
		return err == nil && len(files) == 1
	}, 2*time.Second, 10*time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestS3Config_ObjectName(t *testing.T) {
	assert.Equal(t, "signer/3/backup-1.enc", S3Config{Prefix: "signer/3"}.ObjectName("/tmp/x/backup-1.enc"))
	assert.Equal(t, "backup-1.enc", S3Config{}.ObjectName("backup-1.enc"))
	assert.False(t, S3Config{}.Enabled())
}

func TestFindNewFiles(t *testing.T) {
	assert.Equal(t, []string{"c"}, findNewFiles([]string{"a", "b"}, []string{"a", "b", "c"}))
	assert.Nil(t, findNewFiles([]string{"a"}, []string{"a"}))
}
