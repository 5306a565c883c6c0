package assetstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/atelier/internal/clock"
)

const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendAzblob = "azblob"

	keyPrefix    = "accounts/"
	maxSlugRunes = 48
)

var (
	ErrStorageUnavailable = errors.New("storage_unavailable")
	ErrObjectNotFound     = errors.New("object_not_found")
	ErrInvalidKey         = errors.New("invalid_object_key")
	ErrInvalidTTL         = errors.New("invalid_ttl")
	ErrEmptyObject        = errors.New("empty_object")
)

// Store persists artifact bytes and hands out time-limited read URLs.
// SignedURL performs no writes and needs no network round trip.
type Store interface {
	Backend() string
	Put(ctx context.Context, accountID snowflake.ID, localKey string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// keyBuilder produces durable keys of the form accounts/{id}/images/{ulid}-{slug}.{ext}.
type keyBuilder struct {
	clock clock.Clock
}

func (b keyBuilder) build(accountID snowflake.ID, localKey, contentType string) (string, error) {
	if accountID <= 0 {
		return "", ErrInvalidKey
	}
	id, err := ulid.New(ulid.Timestamp(b.clock.Now()), ulid.DefaultEntropy())
	if err != nil {
		return "", fmt.Errorf("generate object id: %w", err)
	}
	return fmt.Sprintf("%s%s/images/%s-%s.%s",
		keyPrefix,
		accountID.String(),
		strings.ToLower(id.String()),
		keySlug(localKey),
		extensionFor(contentType),
	), nil
}

func keySlug(localKey string) string {
	s := slug.Make(localKey)
	if runes := []rune(s); len(runes) > maxSlugRunes {
		s = string(runes[:maxSlugRunes])
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "image"
	}
	return s
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

func validateKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func validatePut(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyObject
	}
	return nil
}

func unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, backend, err)
}
