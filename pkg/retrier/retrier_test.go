package retrier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	r := New()
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxInterval(2*time.Millisecond))
	calls := 0

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	r := New(WithInitialInterval(time.Millisecond), WithMaxRetries(2))
	calls := 0
	boom := errors.New("down")

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r := New(WithInitialInterval(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
