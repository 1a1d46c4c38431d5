// Package backup uploads compressed archives of the data directory to an
// S3-compatible object store.
package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/config"
)

// Service archives the data directory and uploads it. Disabled when the
// endpoint or bucket is not configured.
type Service struct {
	cfg     *config.BackupConfig
	dataDir string
	log     zerolog.Logger
}

// NewService creates a new backup service
func NewService(cfg *config.BackupConfig, dataDir string, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		dataDir: dataDir,
		log:     log.With().Str("component", "backup").Logger(),
	}
}

// Enabled reports whether backups are configured.
func (s *Service) Enabled() bool {
	return s.cfg != nil && s.cfg.Endpoint != "" && s.cfg.Bucket != ""
}

// Run archives the data directory and uploads one tar.gz object keyed by
// timestamp.
func (s *Service) Run(ctx context.Context) error {
	if !s.Enabled() {
		return fmt.Errorf("backup is not configured")
	}

	start := time.Now()

	archive, err := s.archive()
	if err != nil {
		return fmt.Errorf("failed to build archive: %w", err)
	}

	client, err := s.client(ctx)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("spyglass/backup-%s.tar.gz", start.UTC().Format("20060102-150405"))
	uploader := manager.NewUploader(client)

	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(archive),
	}); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Str("key", key).
		Int("bytes", len(archive)).
		Dur("duration", time.Since(start)).
		Msg("Backup uploaded")
	return nil
}

func (s *Service) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &s.cfg.Endpoint
		o.UsePathStyle = true
	}), nil
}

// archive builds an in-memory tar.gz of the data directory. WAL sidecar
// files are skipped; the checkpoint before backup folds them into the main
// database file.
func (s *Service) archive() ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm") {
			return nil
		}

		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
