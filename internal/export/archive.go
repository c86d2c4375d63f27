package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveType selects the archive backend
type ArchiveType string

const (
	ArchiveNone  ArchiveType = "none"
	ArchiveLocal ArchiveType = "local"
	ArchiveS3    ArchiveType = "s3"
)

// Archive stores finished packets
type Archive interface {
	// Store saves content under a key derived from referralID and filename and returns the key
	Store(ctx context.Context, referralID, filename string, content io.Reader, contentType string) (string, error)
}

// ArchiveConfig holds configuration for the archive backends
type ArchiveConfig struct {
	Type      ArchiveType
	LocalPath string
	S3Bucket  string
	S3Region  string
}

// NewArchive creates the archive selected by cfg. ArchiveNone returns nil.
func NewArchive(ctx context.Context, cfg ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "", ArchiveNone:
		return nil, nil
	case ArchiveLocal:
		path := cfg.LocalPath
		if path == "" {
			path = "./archive"
		}
		return NewLocalArchive(path)
	case ArchiveS3:
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, fmt.Errorf("s3 archive requires bucket and region")
		}
		return NewS3Archive(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

func archiveKey(referralID, filename string, now time.Time) string {
	return fmt.Sprintf("%d/%02d/%s/%s", now.Year(), now.Month(), sanitize(referralID), sanitize(filename))
}

func sanitize(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_")
	return replacer.Replace(name)
}

// LocalArchive writes packets below a base directory
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

// NewLocalArchive creates the base directory if needed
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

// Store writes content to disk
func (a *LocalArchive) Store(ctx context.Context, referralID, filename string, content io.Reader, contentType string) (string, error) {
	key := archiveKey(referralID, filename, a.now())
	fullPath := filepath.Join(a.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

// S3Archive uploads packets to a bucket
type S3Archive struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3Archive loads the default AWS config for region
func NewS3Archive(ctx context.Context, bucket, region string) (*S3Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Archive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		now:    time.Now,
	}, nil
}

// Store uploads content
func (a *S3Archive) Store(ctx context.Context, referralID, filename string, content io.Reader, contentType string) (string, error) {
	now := a.now()
	key := archiveKey(referralID, filename, now)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"referral-id":       referralID,
			"original-filename": filename,
			"archived-at":       now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}
