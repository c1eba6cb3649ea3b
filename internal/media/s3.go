package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"snw-store/internal/config"
)

// ObjectStore saves uploaded objects and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store builds a client for any S3 compatible endpoint. Without an
// endpoint the AWS default for the region is used.
func NewS3Store(cfg config.Storage) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("S3_PUBLIC_BASE_URL is required")
	}

	options := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		options.BaseEndpoint = aws.String(endpoint)
		options.UsePathStyle = true
	}

	return &S3Store{
		client:        s3.New(options),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.PublicURL(key), nil
}

func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}
