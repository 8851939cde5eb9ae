package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tube-server/internal/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure s3MediaStore implements MediaStore
var _ interfaces.MediaStore = (*s3MediaStore)(nil)

// Config holds the S3 connection settings for the media store.
type Config struct {
	Region        string
	Bucket        string
	Endpoint      string // пусто = AWS, иначе MinIO-совместимый endpoint
	PublicBaseURL string // база публичных URL; пусто = endpoint/bucket
	AccessKey     string
	SecretKey     string
}

type s3MediaStore struct {
	client *s3.Client
	cfg    Config
	logger *zap.Logger
}

// NewS3MediaStore creates an S3-backed MediaStore.
func NewS3MediaStore(ctx context.Context, cfg Config, logger *zap.Logger) (interfaces.MediaStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO не поддерживает virtual-hosted style адресацию
			o.UsePathStyle = true
		}
	})

	return &s3MediaStore{
		client: client,
		cfg:    cfg,
		logger: logger.Named("S3MediaStore"),
	}, nil
}

// storageKey derives a date-partitioned unique object key for an upload.
func storageKey(localPath string) string {
	d := time.Now()
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// Upload stores the file at localPath in the bucket and returns its public URL.
func (s *s3MediaStore) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		s.logger.Error("Failed to open local file for upload", zap.Error(err), zap.String("path", localPath))
		return "", fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	key := storageKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.logger.Debug("Uploading object to S3",
		zap.String("bucket", s.cfg.Bucket),
		zap.String("key", key),
		zap.String("contentType", contentType),
	)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to put object to S3", zap.Error(err), zap.String("key", key))
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	url := s.publicURL(key)
	s.logger.Info("Object uploaded successfully", zap.String("key", key), zap.String("url", url))
	return url, nil
}

func (s *s3MediaStore) publicURL(key string) string {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	if base != "" {
		return fmt.Sprintf("%s/%s", base, key)
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
