package assetstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"google.golang.org/api/option"
)

type GCSStore struct {
	keys        keyBuilder
	bucket      string
	signerEmail string
	client      *storage.Client
}

func NewGCSStore(ctx context.Context, clk clock.Clock, cfg config.AssetConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{
		keys:        keyBuilder{clock: clk},
		bucket:      cfg.Bucket,
		signerEmail: cfg.GCSSignerEmail,
		client:      client,
	}, nil
}

func (s *GCSStore) Backend() string { return BackendGCS }

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Put(ctx context.Context, accountID snowflake.ID, localKey string, data []byte, contentType string) (string, error) {
	if err := validatePut(data); err != nil {
		return "", err
	}
	key, err := s.keys.build(accountID, localKey, contentType)
	if err != nil {
		return "", err
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", unavailable(BackendGCS, err)
	}
	if err := w.Close(); err != nil {
		return "", unavailable(BackendGCS, err)
	}
	return key, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := validateKey(key); err != nil {
		return nil, "", err
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", unavailable(BackendGCS, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", unavailable(BackendGCS, err)
	}
	return data, r.Attrs.ContentType, nil
}

func (s *GCSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if err := validateKey(key); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}

	expiresAt := s.keys.clock.Now().Add(ttl)
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expiresAt,
	}
	if s.signerEmail != "" {
		opts.GoogleAccessID = s.signerEmail
	}
	signed, err := s.client.Bucket(s.bucket).SignedURL(key, opts)
	if err != nil {
		return "", time.Time{}, unavailable(BackendGCS, err)
	}
	return signed, expiresAt, nil
}
