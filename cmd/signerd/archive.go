package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v3"

	"github.com/luxfi/signer/pkg/config"
	"github.com/luxfi/signer/pkg/event"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/logger"
)

var errArchiveDisabled = errors.New("archive is not enabled in the config")

// loadArchiveConfig reads the config for the offline archive commands,
// which need neither the message key nor the committee.
func loadArchiveConfig(c *cli.Command) (*config.Config, error) {
	if err := config.InitViperConfig(c.String("config")); err != nil {
		return nil, err
	}
	logger.Init(viper.GetString("environment"), c.Bool("debug"))
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, errArchiveDisabled
	}
	if err := cfg.ValidateArchive(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func backupDir(cfg *config.Config) string {
	if cfg.Archive.BackupDir != "" {
		return cfg.Archive.BackupDir
	}
	return filepath.Join(cfg.Archive.Path, "backups")
}

func restoreArchive(ctx context.Context, c *cli.Command) error {
	cfg, err := loadArchiveConfig(c)
	if err != nil {
		return err
	}
	from := c.String("from")
	if from == "" {
		from = backupDir(cfg)
	}
	return restoreBackups(cfg, from, c.String("to"))
}

// restoreBackups replays the encrypted backups in from into a new archive
// at to, encrypted at rest with the archive key.
func restoreBackups(cfg *config.Config, from, to string) error {
	if len(cfg.Archive.EncryptionKey) == 0 {
		return fmt.Errorf("archive.encryption_key is required to restore backups")
	}
	if to == cfg.Archive.Path {
		return fmt.Errorf("refusing to restore over the live archive at %s", to)
	}
	executor, err := kvstore.NewBadgerBackupExecutor(
		fmt.Sprintf("signer-%d", cfg.SignerID), nil, cfg.Archive.EncryptionKey, from)
	if err != nil {
		return err
	}
	return executor.RestoreAllBackupsEncrypted(to, cfg.Archive.EncryptionKey)
}

func showHistory(ctx context.Context, c *cli.Command) error {
	cfg, err := loadArchiveConfig(c)
	if err != nil {
		return err
	}
	store, err := newArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	events, err := archivedResults(cfg.SignerID, store)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("no round results archived")
		return nil
	}
	for _, ev := range events {
		fmt.Printf("%s %s ", ev.CreatedAt, ev.ID)
		printEvent(ev)
	}
	return nil
}

func archivedResults(signerID uint32, store kvstore.KVStore) ([]event.RoundResultEvent, error) {
	return event.NewSink(signerID, store, nil, logger.Logger()).History()
}
