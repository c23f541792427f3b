package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"occasio/internal/domain"
)

// S3Config holds configuration for the S3 blob store.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL is the base URL objects are served from (e.g. a CDN).
	// Empty means the bucket's virtual-hosted S3 URL.
	PublicURL string
}

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	client  s3API
	bucket  string
	baseURL string
}

// NewS3Store returns a BlobStore that writes objects to an S3 bucket.
func NewS3Store(config S3Config) (domain.BlobStore, error) {
	if config.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg := aws.Config{
		Region: config.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		),
	}
	return newS3Store(s3.NewFromConfig(awsCfg), config), nil
}

func newS3Store(client s3API, config S3Config) *s3Store {
	baseURL := strings.TrimSuffix(config.PublicURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region)
	}
	return &s3Store{client: client, bucket: config.Bucket, baseURL: baseURL}
}

func (s *s3Store) Store(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	// buffered so the SDK can sign and retry with a seekable body
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Delete removes the object. S3 reports success for keys that do not exist.
func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
