package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSOptions configures a bucket-backed blob store
type GCSOptions struct {
	Bucket          string
	CDNDomain       string
	CredentialsJSON string
	CredentialsFile string
	// Endpoint points the client at an emulator such as fake-gcs-server
	Endpoint string
	Timeout  time.Duration
}

// GCSBlobStore stores objects in one Google Cloud Storage bucket
type GCSBlobStore struct {
	client  *storage.Client
	bucket  string
	cdn     string
	timeout time.Duration
}

// NewGCSClient builds a storage client from credentials or an emulator endpoint
func NewGCSClient(ctx context.Context, opts GCSOptions) (*storage.Client, error) {
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	switch {
	case opts.Endpoint != "":
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case strings.TrimSpace(opts.CredentialsFile) != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// NewGCSBlobStore wraps a shared client for one bucket
func NewGCSBlobStore(client *storage.Client, opts GCSOptions) (*GCSBlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GCSBlobStore{
		client:  client,
		bucket:  opts.Bucket,
		cdn:     opts.CDNDomain,
		timeout: timeout,
	}, nil
}

func (s *GCSBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *GCSBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrBlobNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *GCSBlobStore) PublicURL(key string) string {
	if s.cdn != "" {
		return joinURL("https://"+s.cdn, key)
	}
	return joinURL("https://storage.googleapis.com/"+s.bucket, key)
}
