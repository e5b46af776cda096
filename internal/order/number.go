package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultNumberPrefix = "FT"

	numberCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	numberSuffixLen   = 6
	maxNumberAttempts = 10
)

var errNumbersExhausted = errors.New("no free order number")

// NumberGenerator returns a candidate order number, uniqueness is checked by the caller.
type NumberGenerator func() (string, error)

// NewNumberGenerator produces numbers like FT-20260118-K3ZQ7A, the date taken from now in UTC.
func NewNumberGenerator(prefix string, now func() time.Time) NumberGenerator {
	return func() (string, error) {
		suffix, err := randomString(numberSuffixLen)
		if err != nil {
			return "", fmt.Errorf("randomString: %w", err)
		}

		return fmt.Sprintf("%s-%s-%s", prefix, now().UTC().Format("20060102"), suffix), nil
	}
}

func randomString(length int) (string, error) {
	n := big.NewInt(int64(len(numberCharset)))

	b := make([]byte, length)
	for i := range b {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = numberCharset[idx.Int64()]
	}

	return string(b), nil
}

// uniqueNumber regenerates until exists reports a free number.
func uniqueNumber(ctx context.Context, gen NumberGenerator, exists func(ctx context.Context, number string) (bool, error)) (string, error) {
	for range maxNumberAttempts {
		number, err := gen()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("exists: %w", err)
		}
		if !taken {
			return number, nil
		}
	}

	return "", fmt.Errorf("after %d attempts: %w", maxNumberAttempts, errNumbersExhausted)
}
