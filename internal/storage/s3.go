package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET requests
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps blobs in a bucket. Put returns the object URL; readers use SignedURL.
type S3Store struct {
	client    S3API
	presigner Presigner
	bucket    string
	prefix    string
	region    string
	endpoint  string
}

// NewS3Store creates a store on the given bucket. A custom endpoint (MinIO, LocalStack)
// switches the client to path-style addressing.
func NewS3Store(awsCfg aws.Config, bucket, prefix string) *S3Store {
	endpoint := aws.ToString(awsCfg.BaseEndpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		region:    awsCfg.Region,
		endpoint:  strings.TrimRight(endpoint, "/"),
	}
}

func (s *S3Store) key(objectPath string) (string, error) {
	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return p, nil
	}
	return s.prefix + "/" + p, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	key, err := s.key(objectPath)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Store) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	key, err := s.key(objectPath)
	if err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) objectURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
