// Package session keeps scs session data in Redis next to the carts it points at.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCookieName = "footy_session"
	DefaultLifetime   = 30 * 24 * time.Hour

	keyPrefix = "session:data:"
)

// RedisStore implements scs.Store.
type RedisStore struct {
	client *redis.Client
}

var _ scs.Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Find(token string) ([]byte, bool, error) {
	b, err := s.client.Get(context.Background(), keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return b, true, nil
}

func (s *RedisStore) Commit(token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.Delete(token)
	}

	if err := s.client.Set(context.Background(), keyPrefix+token, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(token string) error {
	if err := s.client.Del(context.Background(), keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// NewManager returns a session manager with a sliding lifetime, stored in Redis.
func NewManager(client *redis.Client, cookieName string, lifetime time.Duration, secure bool) *scs.SessionManager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	sm := scs.New()
	sm.Store = NewRedisStore(client)
	sm.Lifetime = lifetime
	sm.Cookie.Name = cookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure

	return sm
}
