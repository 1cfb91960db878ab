package kvstore

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/luxfi/signer/pkg/common/pathutil"
	"github.com/luxfi/signer/pkg/encryption"
	"github.com/luxfi/signer/pkg/logger"
)

const (
	magic             = "LUX_SIGNER_BACKUP"
	defaultBackupDir  = "./backups"
	versionFile       = "latest.version"
	maxPendingWrites  = 256
	backupAlgorithm   = "AES-256-GCM"
	backupFilePattern = "backup-*.enc"
)

var ErrBadBackup = errors.New("kvstore: malformed backup file")

// BackupMeta holds metadata for an encrypted backup file.
type BackupMeta struct {
	Algo            string `json:"algo"`
	NonceB64        string `json:"nonce_b64"`
	CreatedAt       string `json:"created_at"` // RFC3339
	Since           uint64 `json:"since"`
	NextSince       uint64 `json:"next_since"`
	EncryptionKeyID string `json:"encryption_key_id"`
}

// BackupVersion tracks the incremental backup state.
type BackupVersion struct {
	Version   uint64 `json:"version"`
	Since     uint64 `json:"since"`
	UpdatedAt string `json:"updated_at"`
}

// BadgerBackupExecutor writes incremental, encrypted badger backups.
type BadgerBackupExecutor struct {
	NodeID string
	DB     *badger.DB
	Key    []byte
	Dir    string
}

// NewBadgerBackupExecutor creates a backup executor. If dir is empty,
// ./backups is used.
func NewBadgerBackupExecutor(nodeID string, db *badger.DB, key []byte, dir string) (*BadgerBackupExecutor, error) {
	if len(key) == 0 {
		return nil, ErrBackupEncryptionKeyNotProvided
	}
	if dir == "" {
		dir = defaultBackupDir
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &BadgerBackupExecutor{NodeID: nodeID, DB: db, Key: key, Dir: dir}, nil
}

// Execute writes every entry changed since the previous backup. Nothing is
// written when there are no changes.
func (b *BadgerBackupExecutor) Execute() error {
	info, err := b.LoadVersionInfo()
	if err != nil {
		return fmt.Errorf("failed to load version info: %w", err)
	}

	var plain bytes.Buffer
	last, err := b.DB.Backup(&plain, info.Since)
	if err != nil {
		return err
	}
	// Badger versions start at 1; zero means nothing newer than since.
	if last == 0 || plain.Len() == 0 {
		logger.Debug("No changes since last backup, skipping", "since", info.Since)
		return nil
	}
	nextSince := last + 1

	ct, nonce, err := encryption.EncryptAESGCM(plain.Bytes(), b.Key)
	if err != nil {
		return err
	}

	now := time.Now()
	version := info.Version + 1
	meta := BackupMeta{
		Algo:            backupAlgorithm,
		NonceB64:        base64.StdEncoding.EncodeToString(nonce),
		CreatedAt:       now.UTC().Format(time.RFC3339),
		Since:           info.Since,
		NextSince:       nextSince,
		EncryptionKeyID: encryption.KeyID(b.Key),
	}
	filename := fmt.Sprintf("backup-%s-%s-%06d.enc", b.NodeID, now.UTC().Format("2006-01-02_15-04-05"), version)
	outPath, err := pathutil.SafePath(b.Dir, filename)
	if err != nil {
		return err
	}
	if err := writeBackupFile(outPath, meta, ct); err != nil {
		return err
	}

	logger.Info("Encrypted backup written", "file", filename, "version", version)
	if err := b.SaveVersionInfo(version, nextSince); err != nil {
		logger.Error("Failed to save backup version", err)
	}
	return nil
}

func writeBackupFile(path string, meta BackupMeta, ct []byte) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if len(metaJSON) > math.MaxUint32 {
		return fmt.Errorf("backup metadata too large")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.BigEndian, uint32(len(metaJSON))); err != nil {
		return err
	}
	if _, err := f.Write(metaJSON); err != nil {
		return err
	}
	if _, err := f.Write(ct); err != nil {
		return err
	}
	return f.Sync()
}

func (b *BadgerBackupExecutor) SaveVersionInfo(counter, since uint64) error {
	data, err := json.Marshal(BackupVersion{
		Version:   counter,
		Since:     since,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.Dir, versionFile), data, 0600)
}

func (b *BadgerBackupExecutor) LoadVersionInfo() (BackupVersion, error) {
	var info BackupVersion
	data, err := os.ReadFile(filepath.Join(b.Dir, versionFile))
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, err
	}
	err = json.Unmarshal(data, &info)
	return info, err
}

// SortedEncryptedBackups lists backup files oldest first.
func (b *BadgerBackupExecutor) SortedEncryptedBackups() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(b.Dir, backupFilePattern))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// RestoreAllBackupsEncrypted replays every backup into a fresh database at
// restorePath, encrypted at rest with encryptionKey (may be empty).
func (b *BadgerBackupExecutor) RestoreAllBackupsEncrypted(restorePath string, encryptionKey []byte) error {
	if err := os.MkdirAll(restorePath, 0700); err != nil {
		return fmt.Errorf("failed to create restore directory: %w", err)
	}
	files, err := b.SortedEncryptedBackups()
	if err != nil {
		return err
	}

	db, err := openBadger(restorePath, false, encryptionKey)
	if err != nil {
		return err
	}
	for _, file := range files {
		logger.Info("Restoring backup", "file", filepath.Base(file))
		if err := b.loadEncryptedBackup(db, file); err != nil {
			db.Close() //nolint:errcheck
			return fmt.Errorf("restore %s: %w", filepath.Base(file), err)
		}
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close restore database: %w", err)
	}
	logger.Info("Restore complete", "path", restorePath, "files", len(files))
	return nil
}

func (b *BadgerBackupExecutor) loadEncryptedBackup(db *badger.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	magicBuf := make([]byte, len(magic))
	if _, err := io.ReadFull(f, magicBuf); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if string(magicBuf) != magic {
		return fmt.Errorf("%w: bad magic", ErrBadBackup)
	}

	var metaLen uint32
	if err := binary.Read(f, binary.BigEndian, &metaLen); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	metaBuf := make([]byte, metaLen)
	if _, err := io.ReadFull(f, metaBuf); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	var meta BackupMeta
	if err := json.Unmarshal(metaBuf, &meta); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if meta.EncryptionKeyID != encryption.KeyID(b.Key) {
		return fmt.Errorf("%w: encrypted with a different key", ErrBadBackup)
	}

	ct, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	nonce, err := base64.StdEncoding.DecodeString(meta.NonceB64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	plain, err := encryption.DecryptAESGCM(ct, b.Key, nonce)
	if err != nil {
		return err
	}
	return db.Load(bytes.NewReader(plain), maxPendingWrites)
}
