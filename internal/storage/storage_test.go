package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ordenapp/internal/config"
)

func TestLocalStore_PutAndSignedURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	url, err := store.Put(context.Background(), []byte("%PDF"), "orders/7/documents/SERVICE_REPORT.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/files/orders/7/documents/SERVICE_REPORT.pdf" {
		t.Fatalf("unexpected url %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "orders", "7", "documents", "SERVICE_REPORT.pdf"))
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("stored bytes mismatch: %q %v", data, err)
	}

	// Same path overwrites
	if _, err := store.Put(context.Background(), []byte("%PDF-2"), "orders/7/documents/SERVICE_REPORT.pdf", "application/pdf"); err != nil {
		t.Fatalf("second put: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "orders", "7", "documents", "SERVICE_REPORT.pdf"))
	if string(data) != "%PDF-2" {
		t.Fatalf("expected overwrite, got %q", data)
	}

	signed, err := store.SignedURL(context.Background(), "orders/7/documents/SERVICE_REPORT.pdf", time.Hour)
	if err != nil || signed != url {
		t.Fatalf("unexpected signed url %s %v", signed, err)
	}
	if _, err := store.SignedURL(context.Background(), "orders/8/missing.pdf", time.Hour); err == nil {
		t.Fatalf("expected error for a missing object")
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, p := range []string{"../escape.txt", "orders/../../escape.txt", "", "   "} {
		if _, err := store.Put(context.Background(), []byte("x"), p, "text/plain"); err == nil {
			t.Fatalf("expected error for path %q", p)
		}
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, []byte("x"), "a.txt", "text/plain"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeS3 struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_PutUsesPrefixAndReturnsObjectURL(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, bucket: "ordenes", prefix: "prod", region: "sa-east-1"}

	url, err := store.Put(context.Background(), []byte("img"), "orders/3/evidence/a.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if fake.key != "prod/orders/3/evidence/a.jpg" || fake.contentType != "image/jpeg" || string(fake.body) != "img" {
		t.Fatalf("unexpected put: %+v", fake)
	}
	if url != "https://ordenes.s3.sa-east-1.amazonaws.com/prod/orders/3/evidence/a.jpg" {
		t.Fatalf("unexpected url %s", url)
	}

	store.endpoint = "http://localhost:9000"
	url, _ = store.Put(context.Background(), []byte("img"), "a.jpg", "image/jpeg")
	if url != "http://localhost:9000/ordenes/prod/a.jpg" {
		t.Fatalf("unexpected endpoint url %s", url)
	}
}

func TestS3Store_PutWrapsClientError(t *testing.T) {
	boom := errors.New("503 slow down")
	store := &S3Store{client: &fakeS3{err: boom}, bucket: "ordenes"}
	if _, err := store.Put(context.Background(), []byte("x"), "a.pdf", "application/pdf"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestS3Store_SignedURLIsPresigned(t *testing.T) {
	awsCfg := aws.Config{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("http://localhost:9000"),
	}
	store := NewS3Store(awsCfg, "ordenes", "")

	url, err := store.SignedURL(context.Background(), "orders/1/documents/SERVICE_REPORT.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:9000/ordenes/orders/1/documents/SERVICE_REPORT.pdf?") {
		t.Fatalf("unexpected presigned url %s", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Fatalf("url is not presigned: %s", url)
	}
}

func TestFromConfig(t *testing.T) {
	store, err := FromConfig(config.Storage{Backend: "local", LocalDir: t.TempDir()}, aws.Config{})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected LocalStore, got %T", store)
	}

	store, err = FromConfig(config.Storage{Backend: "s3", Bucket: "b"}, aws.Config{Region: "us-east-1"})
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if _, ok := store.(*S3Store); !ok {
		t.Fatalf("expected S3Store, got %T", store)
	}

	if _, err := FromConfig(config.Storage{Backend: "gcs"}, aws.Config{}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
