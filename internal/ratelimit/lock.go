package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

// compare-and-delete so a turn never frees a lock that expired and was retaken
const sessionUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// sessionLocks gives one chat turn at a time exclusive use of a session.
type sessionLocks struct {
	client *redis.Client
	unlock *redis.Script
	ttl    time.Duration
}

// sessionLease is held by the turn that acquired the lock.
type sessionLease struct {
	key   string
	owner string
}

func newSessionLocks(client *redis.Client, ttl time.Duration) (*sessionLocks, error) {
	if client == nil {
		return nil, errors.New("session lock redis client is nil")
	}
	if ttl <= 0 {
		return nil, errors.New("chat session lock ttl must be positive")
	}
	return &sessionLocks{
		client: client,
		unlock: redis.NewScript(sessionUnlockScript),
		ttl:    ttl,
	}, nil
}

// acquire returns ErrSessionBusy while another turn holds the session.
func (s *sessionLocks) acquire(ctx context.Context, sessionID string) (*sessionLease, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is empty")
	}

	lease := &sessionLease{
		key:   fmt.Sprintf(keyChatSession, sessionID),
		owner: ulid.Make().String(),
	}
	ok, err := s.client.SetNX(ctx, lease.key, lease.owner, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	return lease, nil
}

func (s *sessionLocks) release(ctx context.Context, lease *sessionLease) error {
	if lease == nil {
		return nil
	}
	return s.unlock.Run(ctx, s.client, []string{lease.key}, lease.owner).Err()
}
