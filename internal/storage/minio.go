package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/openenroll/portal/internal/config"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

// allowed badge image extensions and their content types
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

// ImageStore persists badge images and returns the URL stored on the badge.
type ImageStore interface {
	PutImage(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
}

// ImageKey derives a collision-free object key for an uploaded file and
// returns its content type.
func ImageKey(filename string) (string, string, error) {
	ext := strings.ToLower(path.Ext(filename))
	ct, ok := imageTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}
	return "badges/" + uuid.NewString() + ext, ct, nil
}

// MinIOImages stores badge images in a MinIO bucket.
type MinIOImages struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOImages creates a MinIO client and ensures the bucket exists.
func NewMinIOImages(ctx context.Context, cfg config.MinIOConfig) (*MinIOImages, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOImages{client: mc, bucket: cfg.Bucket, publicURL: strings.TrimRight(cfg.PublicURL, "/")}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// PutImage uploads the image. The returned URL uses MINIO_PUBLIC_URL when
// configured, otherwise a week-long presigned link.
func (s *MinIOImages) PutImage(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	key, ct, err := ImageKey(filename)
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: ct}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucket + "/" + key, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, 7*24*time.Hour, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
