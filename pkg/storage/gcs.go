// Package storage implements the media object store on Google Cloud
// Storage through the Firebase SDK. Objects are addressed by a stable
// key; access URLs are time-limited and must be re-derived from the key
// on every read.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// MediaStore uploads, signs and deletes media objects.
type MediaStore struct {
	bucket *gcs.BucketHandle
	ttl    time.Duration
	log    *zap.Logger
}

// NewMediaStore initializes the Firebase app and returns a store bound to
// the configured bucket.
func NewMediaStore(ctx context.Context, credentialsPath, bucketName string, ttl time.Duration, log *zap.Logger) (*MediaStore, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if bucketName == "" {
		return nil, fmt.Errorf("storage bucket not provided")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucketName}, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}

	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("error resolving default bucket: %w", err)
	}

	log.Info("media store initialized", zap.String("bucket", bucketName))
	return &MediaStore{bucket: bucket, ttl: ttl, log: log}, nil
}

// Upload streams the object into the bucket and returns its stable key.
func (s *MediaStore) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	key := "media/" + uuid.NewString()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("uploading object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %s: %w", key, err)
	}
	return key, nil
}

// AccessURL derives a fresh time-limited URL for the given key.
func (s *MediaStore) AccessURL(key string) (string, error) {
	return s.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(s.ttl),
	})
}

// Delete removes the object by key.
func (s *MediaStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}
