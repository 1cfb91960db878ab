package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/config"
	"github.com/luxfi/signer/pkg/event"
	"github.com/luxfi/signer/pkg/threshold"
	"github.com/luxfi/signer/pkg/types"
)

func TestMaskString(t *testing.T) {
	assert.Equal(t, "ab", maskString("ab"))
	assert.Equal(t, "a**d", maskString("abcd"))
	assert.Equal(t, "", maskString(""))
}

func TestIsDkgOutcome(t *testing.T) {
	assert.True(t, isDkgOutcome(types.DkgKey{}))
	assert.True(t, isDkgOutcome(types.DkgFailed{Reason: "x"}))
	assert.False(t, isDkgOutcome(types.Signature{}))
	assert.False(t, isDkgOutcome(types.SignFailed{}))
}

func TestDefaultEngineIsRegistered(t *testing.T) {
	engine, err := threshold.Default().Get(config.DefaultEngine)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEngine, engine.Name())
}

func archiveConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		SignerID: 2,
		Archive: config.ArchiveConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "archive"),
			EncryptionKey: bytes.Repeat([]byte{7}, 32),
			BackupDir:     filepath.Join(dir, "backups"),
		},
	}
}

func TestRestoreBackups_RecoversHistory(t *testing.T) {
	cfg := archiveConfig(t)
	store, err := newArchive(cfg)
	require.NoError(t, err)
	recorded, err := event.NewSink(cfg.SignerID, store, nil, zerolog.Nop()).Handle([]types.Outcome{
		types.SignFailed{Reason: "timed out"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Backup())
	require.NoError(t, store.Close())

	restored := filepath.Join(filepath.Dir(cfg.Archive.Path), "restored")
	require.NoError(t, restoreBackups(cfg, backupDir(cfg), restored))

	cfg.Archive.Path = restored
	cfg.Archive.BackupDir = filepath.Join(filepath.Dir(restored), "restored-backups")
	store, err = newArchive(cfg)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	history, err := archivedResults(cfg.SignerID, store)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, recorded[0].ID, history[0].ID)
	assert.Equal(t, "timed out", history[0].ErrorReason)
}

func TestRestoreBackups_Guards(t *testing.T) {
	cfg := archiveConfig(t)
	assert.Error(t, restoreBackups(cfg, backupDir(cfg), cfg.Archive.Path))

	cfg.Archive.EncryptionKey = nil
	assert.Error(t, restoreBackups(cfg, backupDir(cfg), filepath.Join(t.TempDir(), "out")))
}

func TestBackupDir(t *testing.T) {
	cfg := &config.Config{Archive: config.ArchiveConfig{Path: "/var/lib/signer"}}
	assert.Equal(t, "/var/lib/signer/backups", backupDir(cfg))
	cfg.Archive.BackupDir = "/srv/backups"
	assert.Equal(t, "/srv/backups", backupDir(cfg))
}
