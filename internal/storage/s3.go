package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/DinhCNTT/unimarket-chat/internal/domain/chat/entity"
)

// Chat media is uploaded under the temporary prefix first and moved under
// the permanent prefix once the message referencing it is committed.
const (
	tempPrefix      = "tmp/chat/"
	permanentPrefix = "chat/"
)

// S3Config holds S3/MinIO configuration.
type S3Config struct {
	Endpoint        string // e.g. "http://localhost:9000" for MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	PublicURL       string // public base URL for accessing objects
}

// S3Storage provides the chat media store on any S3-compatible backend.
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Storage creates a new S3 storage client.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true, // Required for MinIO
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

// UploadInput represents input for uploading a chat media file.
type UploadInput struct {
	Reader      io.Reader
	ContentType string
	Size        int64
	Filename    string // optional, for extension extraction
}

// UploadOutput represents an uploaded object.
type UploadOutput struct {
	Key        string // object key, under the temporary prefix
	URL        string // public URL to access the file
	Size       int64
	UploadedAt time.Time
}

// Upload stores a file under the temporary prefix and returns its key and
// public URL. The object stays temporary until Promote is called.
func (s *S3Storage) Upload(ctx context.Context, in UploadInput) (*UploadOutput, error) {
	ext := path.Ext(in.Filename)
	if ext == "" {
		ext = getExtensionFromContentType(in.ContentType)
	}
	key := fmt.Sprintf("%s%s/%s%s", tempPrefix, time.Now().Format("2006/01/02"), uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          in.Reader,
		ContentType:   aws.String(in.ContentType),
		ContentLength: aws.Int64(in.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to s3: %w", err)
	}

	return &UploadOutput{
		Key:        key,
		URL:        s.URLFor(key),
		Size:       in.Size,
		UploadedAt: time.Now(),
	}, nil
}

// Promote moves an object from the temporary prefix to permanent storage and
// returns the new key. Promoting an already permanent key is a no-op.
func (s *S3Storage) Promote(ctx context.Context, key string) (string, error) {
	if !s.IsTemporary(key) {
		return key, nil
	}
	dst := permanentPrefix + strings.TrimPrefix(key, tempPrefix)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + key),
		Key:        aws.String(dst),
	})
	if err != nil {
		return "", fmt.Errorf("promoting object: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("removing temporary object: %w", err)
	}

	return dst, nil
}

// DeleteAsset removes a chat media object, wherever it currently lives.
func (s *S3Storage) DeleteAsset(ctx context.Context, key string, variant entity.Variant) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s asset from s3: %w", variant, err)
	}
	return nil
}

// IsTemporary reports whether the key still lives under the temporary upload
// prefix, i.e. was never promoted to permanent storage.
func (s *S3Storage) IsTemporary(key string) bool {
	return strings.HasPrefix(key, tempPrefix)
}

// URLFor builds the public URL of an object key.
func (s *S3Storage) URLFor(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

// getExtensionFromContentType returns file extension based on content type.
func getExtensionFromContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}
