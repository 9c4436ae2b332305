package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Name: "t1", Attempts: 3, Backoff: noWait{}}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAndReportsLastError(t *testing.T) {
	var exhausted error
	attempts := 0
	err := Do(context.Background(), Policy{
		Name:      "t2",
		Attempts:  2,
		Backoff:   noWait{},
		OnAttempt: func(int, error) { attempts++ },
		OnExhaust: func(err error) { exhausted = err },
	}, func(context.Context) error { return fmt.Errorf("try %d", attempts) })

	require.Error(t, err)
	assert.Equal(t, "try 1", err.Error())
	assert.Equal(t, err, exhausted)
	assert.Equal(t, 2, attempts)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	calls := 0
	p := PublishPolicy("t3", nil)
	p.Backoff = noWait{}
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return fmt.Errorf("bad payload: %w", ErrPermanent)
	})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Name: "t4", Attempts: 5, Backoff: ExpoJitter{Base: time.Hour}}
	err := Do(ctx, p, func(context.Context) error {
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpoJitter_Caps(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 4 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 4*time.Second, b.Next(5))
	assert.Equal(t, time.Second, b.Next(-3))
}
