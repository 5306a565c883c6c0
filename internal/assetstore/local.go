package assetstore

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
)

var (
	ErrSignatureInvalid = errors.New("signature_invalid")
	ErrURLExpired       = errors.New("url_expired")
)

// Verifier checks a signed download URL issued by the same process.
type Verifier interface {
	Verify(key, expires, signature string) error
}

type localObject struct {
	data        []byte
	contentType string
}

// LocalStore keeps objects in process memory and signs URLs with HMAC-SHA256.
type LocalStore struct {
	keys    keyBuilder
	clock   clock.Clock
	secret  []byte
	baseURL string

	mu      sync.RWMutex
	objects map[string]localObject
}

func NewLocalStore(clk clock.Clock, signingKey, baseURL string) (*LocalStore, error) {
	secret := []byte(signingKey)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	return &LocalStore{
		keys:    keyBuilder{clock: clk},
		clock:   clk,
		secret:  secret,
		baseURL: baseURL,
		objects: make(map[string]localObject),
	}, nil
}

func (s *LocalStore) Backend() string { return BackendLocal }

func (s *LocalStore) Put(ctx context.Context, accountID snowflake.ID, localKey string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable(BackendLocal, err)
	}
	if err := validatePut(data); err != nil {
		return "", err
	}
	key, err := s.keys.build(accountID, localKey, contentType)
	if err != nil {
		return "", err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[key] = localObject{data: buf, contentType: contentType}
	s.mu.Unlock()
	return key, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := validateKey(key); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, nil
}

func (s *LocalStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if err := validateKey(key); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}

	// expiry is carried in whole seconds; round up so the URL never dies early
	deadline := s.clock.Now().Add(ttl)
	expiresAt := deadline.Truncate(time.Second)
	if expiresAt.Before(deadline) {
		expiresAt = expiresAt.Add(time.Second)
	}
	expires := strconv.FormatInt(expiresAt.Unix(), 10)

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", s.sign(key, expires))
	return s.baseURL + "/assets/" + key + "?" + q.Encode(), expiresAt, nil
}

// Verify accepts a signature while the clock has not passed its expiry.
func (s *LocalStore) Verify(key, expires, signature string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	want, _ := hex.DecodeString(s.sign(key, expires))
	if !hmac.Equal(got, want) {
		return ErrSignatureInvalid
	}
	if s.clock.Now().After(time.Unix(unix, 0)) {
		return ErrURLExpired
	}
	return nil
}

func (s *LocalStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}
