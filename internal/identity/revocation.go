package identity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RevocationStore remembers terminated sessions until their tokens expire.
type RevocationStore interface {
	RevokeSession(ctx context.Context, sessionID string, until time.Time) error
	// RevokeAccount invalidates every session of the account issued at or before at.
	RevokeAccount(ctx context.Context, accountID string, at time.Time, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID, accountID string, issuedAt time.Time) (bool, error)
}

type memoryRevocationStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // session id -> expiry of the revocation
	accounts map[string]time.Time // account id -> revoked-at
}

// NewMemoryRevocationStore keeps revocations in process memory.
func NewMemoryRevocationStore() RevocationStore {
	return &memoryRevocationStore{
		sessions: make(map[string]time.Time),
		accounts: make(map[string]time.Time),
	}
}

func (s *memoryRevocationStore) RevokeSession(_ context.Context, sessionID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = until
	return nil
}

func (s *memoryRevocationStore) RevokeAccount(_ context.Context, accountID string, at time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = at
	return nil
}

func (s *memoryRevocationStore) IsRevoked(_ context.Context, sessionID, accountID string, issuedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if until, ok := s.sessions[sessionID]; ok {
		if now.Before(until) {
			return true, nil
		}
		delete(s.sessions, sessionID)
	}
	if at, ok := s.accounts[accountID]; ok && !issuedAt.After(at) {
		return true, nil
	}
	return false, nil
}

type redisRevocationStore struct {
	rdb *goredis.Client
}

// NewRedisRevocationStore shares revocations across server instances.
func NewRedisRevocationStore(rdb *goredis.Client) RevocationStore {
	return &redisRevocationStore{rdb: rdb}
}

func sessionKey(id string) string { return "revoked:session:" + id }
func accountKey(id string) string { return "revoked:account:" + id }

func (s *redisRevocationStore) RevokeSession(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil // token already expired
	}
	return s.rdb.Set(ctx, sessionKey(sessionID), 1, ttl).Err()
}

func (s *redisRevocationStore) RevokeAccount(ctx context.Context, accountID string, at time.Time, ttl time.Duration) error {
	return s.rdb.Set(ctx, accountKey(accountID), at.UnixNano(), ttl).Err()
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, sessionID, accountID string, issuedAt time.Time) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	raw, err := s.rdb.Get(ctx, accountKey(accountID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, err
	}
	return issuedAt.UnixNano() <= at, nil
}
