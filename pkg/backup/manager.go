// Package backup runs the periodic archive backup and ships new backup
// files to object storage.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const DefaultPeriod = 5 * time.Minute

// Executor writes incremental backup files and lists them oldest first.
type Executor interface {
	Execute() error
	SortedEncryptedBackups() ([]string, error)
}

// Uploader copies one local backup file to remote storage.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// Manager handles periodic backups with optional upload.
type Manager struct {
	executor Executor
	uploader Uploader
	period   time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. uploader may be nil.
func NewManager(executor Executor, uploader Uploader, period time.Duration, log zerolog.Logger) *Manager {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Manager{
		executor: executor,
		uploader: uploader,
		period:   period,
		logger:   log.With().Str("component", "backup").Logger(),
	}
}

// Start begins the periodic backup loop. It stops when ctx is done or
// Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop stops the loop and waits for a running backup to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Backup background job stopped")
			return
		case <-ticker.C:
			if _, err := m.RunBackup(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Backup failed")
			}
		}
	}
}

// RunBackup executes a backup and uploads the files it created. Upload
// failures are logged; the local backup still counts.
func (m *Manager) RunBackup(ctx context.Context) ([]string, error) {
	before, err := m.executor.SortedEncryptedBackups()
	if err != nil {
		return nil, err
	}
	if err := m.executor.Execute(); err != nil {
		return nil, fmt.Errorf("local backup failed: %w", err)
	}
	after, err := m.executor.SortedEncryptedBackups()
	if err != nil {
		return nil, err
	}

	newFiles := findNewFiles(before, after)
	if len(newFiles) == 0 {
		return nil, nil
	}
	m.logger.Debug().Int("files", len(newFiles)).Msg("Backup written")

	if m.uploader != nil {
		for _, f := range newFiles {
			if err := m.uploader.Upload(ctx, f); err != nil {
				m.logger.Error().Err(err).Str("file", f).Msg("Backup upload failed")
			}
		}
	}
	return newFiles, nil
}

func findNewFiles(before, after []string) []string {
	existing := make(map[string]bool, len(before))
	for _, f := range before {
		existing[f] = true
	}
	var newFiles []string
	for _, f := range after {
		if !existing[f] {
			newFiles = append(newFiles, f)
		}
	}
	return newFiles
}
