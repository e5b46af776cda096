package cartstore_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/cartstore"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *cartstore.RedisStore
	mr      *miniredis.Miniredis
	client  *redis.Client
	metrics *metrics.Metrics
}

func setupStore(t *testing.T, opts ...cartstore.Option) fixture {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	opts = append([]cartstore.Option{cartstore.WithMetrics(m)}, opts...)

	return fixture{
		store:   cartstore.NewRedisStore(client, opts...),
		mr:      mr,
		client:  client,
		metrics: m,
	}
}

func TestGet_Missing(t *testing.T) {
	f := setupStore(t)
	ownerID := gofakeit.UUID()

	cart, exists, err := f.store.Get(t.Context(), ownerID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, ownerID, cart.OwnerID)
	assert.True(t, cart.IsEmpty())
}

func TestGet_InvalidJSON(t *testing.T) {
	f := setupStore(t)
	ownerID := gofakeit.UUID()

	require.NoError(t, f.mr.Set(cartstore.Key(ownerID), "{not json"))

	_, _, err := f.store.Get(t.Context(), ownerID)
	require.Error(t, err)
}

func TestUpdate_StoresJSONWithTTL(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	ownerID := gofakeit.UUID()
	line := fakeLine()

	cart, err := f.store.Update(ctx, ownerID, func(c domain.Cart, exists bool) (domain.Cart, error) {
		assert.False(t, exists)
		return c.AddLine(line), nil
	})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)

	assert.Equal(t, cartstore.DefaultTTL, f.mr.TTL(cartstore.Key(ownerID)))

	raw, err := f.mr.Get(cartstore.Key(ownerID))
	require.NoError(t, err)
	assert.Contains(t, raw, `"ownerId":"`+ownerID+`"`)
	assert.Contains(t, raw, `"lines":[`)

	stored, exists, err := f.store.Get(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, line.VariantID, stored.Lines[0].VariantID)
	assert.True(t, line.UnitPrice.Equal(stored.Lines[0].UnitPrice))
}

func TestUpdate_SlidingTTL(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	add := func(c domain.Cart, _ bool) (domain.Cart, error) {
		return c.AddLine(fakeLine()), nil
	}

	_, err := f.store.Update(ctx, ownerID, add)
	require.NoError(t, err)

	f.mr.FastForward(10 * 24 * time.Hour)
	assert.Equal(t, 20*24*time.Hour, f.mr.TTL(cartstore.Key(ownerID)))

	_, err = f.store.Update(ctx, ownerID, add)
	require.NoError(t, err)
	assert.Equal(t, cartstore.DefaultTTL, f.mr.TTL(cartstore.Key(ownerID)))
}

func TestUpdate_ModifierErrorWritesNothing(t *testing.T) {
	f := setupStore(t)
	ownerID := gofakeit.UUID()
	wantErr := errors.New("boom")

	_, err := f.store.Update(t.Context(), ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		return c, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.False(t, f.mr.Exists(cartstore.Key(ownerID)))
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	intruder := fakeLine()
	calls := 0

	cart, err := f.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		calls++
		if calls == 1 {
			// a concurrent writer lands between WATCH and EXEC
			_, err := f.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
				return c.AddLine(intruder), nil
			})
			require.NoError(t, err)
		}
		return c.AddLine(fakeLine()), nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Len(t, cart.Lines, 2)
	_, ok := cart.Line(intruder.VariantID)
	assert.True(t, ok, "concurrent write must not be lost")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CartConflicts))
}

func TestUpdate_ExhaustsAttempts(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	other := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	defer other.Close()

	calls := 0

	_, err := f.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		calls++
		require.NoError(t, other.Set(ctx, cartstore.Key(ownerID), fmt.Sprintf(`{"lines":[],"ownerId":"%s"}`, ownerID), 0).Err())
		return c.AddLine(fakeLine()), nil
	})
	require.ErrorIs(t, err, domain.ErrConcurrentModification)

	assert.Equal(t, cartstore.DefaultMaxAttempts, calls)
	assert.Equal(t, float64(cartstore.DefaultMaxAttempts), testutil.ToFloat64(f.metrics.CartConflicts))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CartRetriesExhaust))
}

func TestUpdate_ConcurrentAddsConverge(t *testing.T) {
	tests := []struct {
		name        string
		writers     int
		maxAttempts int
	}{
		{
			name:        "default attempts, as many writers as attempts",
			writers:     cartstore.DefaultMaxAttempts,
			maxAttempts: cartstore.DefaultMaxAttempts,
		},
		{
			name:        "many writers, raised attempts",
			writers:     25,
			maxAttempts: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupStore(t, cartstore.WithMaxAttempts(tt.maxAttempts))
			ctx := t.Context()
			ownerID := gofakeit.UUID()

			var wg sync.WaitGroup
			errs := make(chan error, tt.writers)

			for range tt.writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					line := fakeLine()
					_, err := f.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
						return c.AddLine(line), nil
					})
					errs <- err
				}()
			}

			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}

			cart, _, err := f.store.Get(ctx, ownerID)
			require.NoError(t, err)
			assert.Len(t, cart.Lines, tt.writers)
		})
	}
}

func TestTransfer(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	from, to := gofakeit.UUID(), gofakeit.UUID()

	srcLine, dstLine := fakeLine(), fakeLine()

	_, err := f.store.Update(ctx, from, func(c domain.Cart, _ bool) (domain.Cart, error) {
		return c.AddLine(srcLine), nil
	})
	require.NoError(t, err)

	_, err = f.store.Update(ctx, to, func(c domain.Cart, _ bool) (domain.Cart, error) {
		return c.AddLine(dstLine), nil
	})
	require.NoError(t, err)

	merged, err := f.store.Transfer(ctx, from, to, func(src domain.Cart, srcExists bool, dst domain.Cart, dstExists bool) (domain.Cart, error) {
		assert.True(t, srcExists)
		assert.True(t, dstExists)
		for _, l := range src.Lines {
			dst = dst.AddLine(l)
		}
		return dst, nil
	})
	require.NoError(t, err)

	assert.Equal(t, to, merged.OwnerID)
	assert.Len(t, merged.Lines, 2)
	assert.False(t, f.mr.Exists(cartstore.Key(from)))
	assert.Equal(t, cartstore.DefaultTTL, f.mr.TTL(cartstore.Key(to)))
}

func TestTransfer_SameOwner(t *testing.T) {
	f := setupStore(t)
	ownerID := gofakeit.UUID()

	_, err := f.store.Transfer(t.Context(), ownerID, ownerID, func(src domain.Cart, _ bool, dst domain.Cart, _ bool) (domain.Cart, error) {
		return dst, nil
	})
	require.EqualError(t, err, "source and destination carts are the same")
}

func TestDelete(t *testing.T) {
	f := setupStore(t)
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	_, err := f.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		return c.AddLine(fakeLine()), nil
	})
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(ctx, ownerID))
	assert.False(t, f.mr.Exists(cartstore.Key(ownerID)))

	// deleting a missing cart is not an error
	require.NoError(t, f.store.Delete(ctx, ownerID))
}

func fakeLine() domain.CartLine {
	return domain.CartLine{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		VariantID: uuid.New(),
		Quantity:  gofakeit.IntRange(1, 5),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 200)).Round(2),
	}
}
