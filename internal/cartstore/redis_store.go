package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL         = 30 * 24 * time.Hour
	DefaultMaxAttempts = 5
)

type Option func(*RedisStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RedisStore) {
		s.metrics = m
	}
}

// RedisStore keeps one JSON document per cart owner. Every write is a WATCH/MULTI
// compare-and-swap retried up to maxAttempts times.
type RedisStore struct {
	client      *redis.Client
	ttl         time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
}

var _ port.CartStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:      client,
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func Key(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

// Get returns an empty cart and false when the owner has none.
func (s *RedisStore) Get(ctx context.Context, ownerID string) (domain.Cart, bool, error) {
	return s.read(ctx, s.client, ownerID)
}

func (s *RedisStore) Update(ctx context.Context, ownerID string, fn port.CartModifier) (domain.Cart, error) {
	key := Key(ownerID)

	var (
		result domain.Cart
		fnErr  error
	)

	txf := func(tx *redis.Tx) error {
		cart, exists, err := s.read(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		next, err := fn(cart, exists)
		if err != nil {
			fnErr = err
			return err
		}
		next.OwnerID = ownerID

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = next
		return nil
	}

	if err := s.retry(ctx, ownerID, func() error {
		return s.client.Watch(ctx, txf, key)
	}); err != nil {
		if fnErr != nil {
			return domain.Cart{}, fnErr
		}
		return domain.Cart{}, err
	}

	return result, nil
}

// Transfer watches both keys, writes the merged cart under toOwnerID and deletes
// fromOwnerID in the same MULTI.
func (s *RedisStore) Transfer(ctx context.Context, fromOwnerID, toOwnerID string, fn port.CartMerger) (domain.Cart, error) {
	if fromOwnerID == toOwnerID {
		return domain.Cart{}, errors.New("source and destination carts are the same")
	}

	fromKey, toKey := Key(fromOwnerID), Key(toOwnerID)

	var (
		result domain.Cart
		fnErr  error
	)

	txf := func(tx *redis.Tx) error {
		src, srcExists, err := s.read(ctx, tx, fromOwnerID)
		if err != nil {
			return err
		}

		dst, dstExists, err := s.read(ctx, tx, toOwnerID)
		if err != nil {
			return err
		}

		next, err := fn(src, srcExists, dst, dstExists)
		if err != nil {
			fnErr = err
			return err
		}
		next.OwnerID = toOwnerID

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, toKey, data, s.ttl)
			pipe.Del(ctx, fromKey)
			return nil
		})
		if err != nil {
			return err
		}

		result = next
		return nil
	}

	if err := s.retry(ctx, toOwnerID, func() error {
		return s.client.Watch(ctx, txf, fromKey, toKey)
	}); err != nil {
		if fnErr != nil {
			return domain.Cart{}, fnErr
		}
		return domain.Cart{}, err
	}

	return result, nil
}

func (s *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, Key(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *RedisStore) retry(ctx context.Context, ownerID string, watch func() error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := watch()
		if err == nil {
			return nil
		}

		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		if s.metrics != nil {
			s.metrics.CartConflicts.Inc()
		}

		if attempt < s.maxAttempts {
			if err := sleep(ctx, jitter(attempt)); err != nil {
				return err
			}
		}
	}

	if s.metrics != nil {
		s.metrics.CartRetriesExhaust.Inc()
	}

	return fmt.Errorf("cart[%s] after %d attempts: %w", ownerID, s.maxAttempts, domain.ErrConcurrentModification)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter, ownerID string) (domain.Cart, bool, error) {
	empty := domain.Cart{OwnerID: ownerID}

	data, err := c.Get(ctx, Key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return empty, false, nil
		}
		return empty, false, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return empty, false, fmt.Errorf("json.Unmarshal: %w", err)
	}
	cart.OwnerID = ownerID

	return cart, true, nil
}

func jitter(attempt int) time.Duration {
	return time.Duration(rand.IntN(5*attempt)+1) * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
