package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps waits short; jitter is off so timings are predictable.
func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// flakyPing fails with errs in order, then succeeds.
func flakyPing(errs ...error) (func() error, *int) {
	calls := 0
	return func() error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	}, &calls
}

type dialTimeout struct{}

func (dialTimeout) Error() string   { return "dial tcp 10.0.0.5:5432: i/o deadline" }
func (dialTimeout) Timeout() bool   { return true }
func (dialTimeout) Temporary() bool { return true }

var _ net.Error = dialTimeout{}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, 0.1, cfg.JitterFactor)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"dns", errors.New("dial tcp: lookup db: no such host"), true},
		{"server starting", errors.New("FATAL: the database system is starting up (SQLSTATE 57P03)"), true},
		{"net error", fmt.Errorf("failed to connect: %w", dialTimeout{}), true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unknown database", &pgconn.PgError{Code: "3D000", Message: `database "precast" does not exist`}, false},
		{"bad password", &pgconn.PgError{Code: "28P01"}, false},
		{"bad password text", errors.New("password authentication failed for user"), false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("ping: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDoIf_PingSucceedsOnceServerIsUp(t *testing.T) {
	ping, calls := flakyPing(
		errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
		&pgconn.PgError{Code: "57P03"},
	)

	err := DoIf(context.Background(), fastConfig(3), IsRetryable, ping)

	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestDoIf_StopsOnPermanentError(t *testing.T) {
	authErr := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	ping, calls := flakyPing(errors.New("connection refused"), authErr, authErr)

	err := DoIf(context.Background(), fastConfig(5), IsRetryable, ping)

	assert.ErrorIs(t, err, authErr)
	assert.Equal(t, 2, *calls)
}

func TestDoIf_ReturnsLastErrorWhenExhausted(t *testing.T) {
	first := errors.New("connection refused")
	last := errors.New("connection reset by peer")
	ping, calls := flakyPing(first, first, last, errors.New("unused"))

	err := DoIf(context.Background(), fastConfig(2), IsRetryable, ping)

	assert.Same(t, last, err)
	assert.Equal(t, 3, *calls)
}

func TestDoIf_ContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := DoIf(ctx, cfg, IsRetryable, func() error {
		calls++
		return errors.New("connection refused")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDoIf_BackoffGrowsAndIsCapped(t *testing.T) {
	cfg := &Config{MaxRetries: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2}

	var stamps []time.Time
	_ = DoIf(context.Background(), cfg, IsRetryable, func() error {
		stamps = append(stamps, time.Now())
		return errors.New("connection refused")
	})

	require.Len(t, stamps, 5)
	// Waits are 10ms, 20ms, then capped at 25ms.
	waits := make([]time.Duration, 0, 4)
	for i := 1; i < len(stamps); i++ {
		waits = append(waits, stamps[i].Sub(stamps[i-1]))
	}
	assert.GreaterOrEqual(t, waits[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, waits[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, waits[2], 25*time.Millisecond)
	assert.Less(t, waits[3], 200*time.Millisecond)
}

func TestDoIf_NilConfigUsesDefaults(t *testing.T) {
	ping, calls := flakyPing()
	require.NoError(t, DoIf(context.Background(), nil, IsRetryable, ping))
	assert.Equal(t, 1, *calls)
}

func TestApplyJitter_StaysWithinFactor(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, base, applyJitter(base, 0))

	for i := 0; i < 50; i++ {
		got := applyJitter(base, 0.1)
		assert.GreaterOrEqual(t, got, 90*time.Millisecond)
		assert.LessOrEqual(t, got, 110*time.Millisecond)
	}
}
