// internal/pkg/session/store.go
package session

import (
	"context"
	"fmt"
	"time"

	xerrors "arborlead-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Store keeps issued token ids (jti) in Redis so sessions can be revoked
// before their JWT expiry.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func sessionKey(jti string) string {
	return "session:" + jti
}

// Save records an active session for a user, expiring with the token.
func (s *Store) Save(ctx context.Context, jti string, userID int64, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, sessionKey(jti), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Validate checks that the session behind a jti is still active.
func (s *Store) Validate(ctx context.Context, jti string) error {
	n, err := s.rdb.Exists(ctx, sessionKey(jti)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return xerrors.ErrSessionExpired
	}
	return nil
}

// Revoke removes a session, invalidating its token immediately.
func (s *Store) Revoke(ctx context.Context, jti string) error {
	if err := s.rdb.Del(ctx, sessionKey(jti)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
