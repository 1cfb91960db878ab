package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const uploadTimeout = 5 * time.Minute

// S3Config configures S3-compatible backup storage
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"` // e.g. "s3.amazonaws.com" or "minio.example.com"
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"` // e.g. "signer/3/"
}

// Enabled reports whether an endpoint is configured.
func (c S3Config) Enabled() bool { return c.Endpoint != "" }

// ObjectName is the key a local backup file is stored under.
func (c S3Config) ObjectName(localPath string) string {
	prefix := c.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + filepath.Base(localPath)
}

type S3Uploader struct {
	cfg    S3Config
	client *minio.Client
	logger zerolog.Logger
}

// NewS3Uploader connects to the endpoint and creates the bucket if it is
// missing.
func NewS3Uploader(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	u := &S3Uploader{cfg: cfg, client: client, logger: log.With().Str("component", "s3_backup").Logger()}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		u.logger.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to check S3 bucket")
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			u.logger.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to create S3 bucket")
		} else {
			u.logger.Info().Str("bucket", cfg.Bucket).Msg("Created S3 bucket")
		}
	}

	u.logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Str("prefix", cfg.Prefix).
		Msg("S3 backup enabled")
	return u, nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	objectName := u.cfg.ObjectName(localPath)
	info, err := u.client.FPutObject(ctx, u.cfg.Bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("S3 upload failed: %w", err)
	}

	u.logger.Info().
		Str("bucket", u.cfg.Bucket).
		Str("object", objectName).
		Int64("size", info.Size).
		Msg("Backup uploaded to S3")
	return nil
}
