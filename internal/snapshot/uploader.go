// Package snapshot backs up the decision document to S3-compatible storage.
// When no bucket is configured the NoopUploader is used and every call
// reports ErrNotConfigured, keeping the portal in local-only mode.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/insurewright/onboarding/internal/config"
)

// ErrNotConfigured is returned when S3 snapshot storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

// Uploader stores backup objects and hands out download links.
type Uploader interface {
	// Upload writes data under key.
	Upload(ctx context.Context, key string, data []byte) error

	// PresignedURL returns a time-limited download link for key.
	PresignedURL(ctx context.Context, key string) (url string, expiry time.Time, err error)
}

// s3Client is the subset of minio.Client used by S3Uploader.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads backups to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload stores data as a JSON object under key.
func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte) error {
	if err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("upload %s to S3: %w", key, err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for key.
func (u *S3Uploader) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(u.urlExpiry), nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload returns ErrNotConfigured.
func (u *NoopUploader) Upload(ctx context.Context, key string, data []byte) error {
	return ErrNotConfigured
}

// PresignedURL returns ErrNotConfigured.
func (u *NoopUploader) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader returns a NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.SnapshotStorageConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint. The scheme,
// when present, decides useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// Backup describes the objects written by UploadState.
type Backup struct {
	Key       string    `json:"key"`
	LatestKey string    `json:"latestKey"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadState writes the serialised document twice: once under a timestamped
// key and once as latest.json, both below prefix.
func UploadState(ctx context.Context, u Uploader, prefix string, data []byte, now time.Time) (*Backup, error) {
	b := &Backup{
		Key:       objectKey(prefix, now),
		LatestKey: latestKey(prefix),
		Size:      len(data),
		CreatedAt: now.UTC(),
	}
	if err := u.Upload(ctx, b.Key, data); err != nil {
		return nil, err
	}
	if err := u.Upload(ctx, b.LatestKey, data); err != nil {
		return nil, err
	}
	return b, nil
}

// objectKey returns {prefix}/{UTC timestamp}.json.
func objectKey(prefix string, now time.Time) string {
	return path.Join(prefix, now.UTC().Format("20060102T150405Z")+".json")
}

func latestKey(prefix string) string {
	return path.Join(prefix, "latest.json")
}
