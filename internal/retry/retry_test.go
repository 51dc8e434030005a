package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo_RetriesStorageErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("query: %w", domain.ErrStorageUnavailable)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return domain.ErrStorageUnavailable
	})

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryDomainErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return domain.NewSeatConflict(1, "2025-06-01", []string{"1A"})
	})

	assert.ErrorIs(t, err, domain.ErrSeatsAlreadyBooked)
	assert.Equal(t, []string{"1A"}, domain.SeatsOf(err))
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Policy{Attempts: 10, InitialBackoff: 50 * time.Millisecond}.Do(ctx, func() error {
		calls++
		return domain.ErrStorageUnavailable
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestValue(t *testing.T) {
	calls := 0
	v, err := Value(context.Background(), fastPolicy(2), func() (string, error) {
		calls++
		if calls == 1 {
			return "", domain.ErrStorageUnavailable
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Value(context.Background(), fastPolicy(2), func() (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
