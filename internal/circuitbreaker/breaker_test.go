package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(fail, success int) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1540000000, 0)}
	b := New(Config{
		FailThreshold:    fail,
		SuccessThreshold: success,
		Timeout:          time.Second,
	}, WithClock(clock.Now))
	return b, clock
}

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed", StateClosed, "CLOSED"},
		{"open", StateOpen, "OPEN"},
		{"half_open", StateHalfOpen, "HALF_OPEN"},
		{"unknown", State(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 2)

	require.NoError(t, b.Allow())
	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 2, b.Failures())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3, 2)

	b.Record(false)
	b.Record(false)
	b.Record(true)
	assert.Equal(t, 0, b.Failures())

	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(1, 2)

	b.Record(false)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(999 * time.Millisecond)
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	clock.Advance(time.Millisecond)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Record(true)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.Equal(t, 1, b.Successes())

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, 2)

	b.Record(false)
	clock.Advance(time.Second)
	require.NoError(t, b.Allow())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	clock.Advance(time.Second)
	assert.NoError(t, b.Allow())
}

func TestBreaker_LateFailureExtendsOpen(t *testing.T) {
	b, clock := newTestBreaker(1, 1)

	b.Record(false)
	clock.Advance(500 * time.Millisecond)
	b.Record(false)

	clock.Advance(500 * time.Millisecond)
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	b.Record(false)
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, 0, b.Successes())
	assert.NoError(t, b.Allow())
}

func TestBreaker_Metrics(t *testing.T) {
	b, _ := newTestBreaker(1, 1)

	require.NoError(t, b.Allow())
	b.Record(true)
	require.NoError(t, b.Allow())
	b.Record(false)
	assert.Error(t, b.Allow())

	m := b.Metrics()
	assert.Equal(t, int64(3), m.TotalRequests)
	assert.Equal(t, int64(1), m.RejectedRequests)
	assert.Equal(t, int64(1), m.SuccessRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.Equal(t, int32(1), m.StateChanges)
	assert.Equal(t, "OPEN", m.CurrentState)
}

func TestBreaker_Nil(t *testing.T) {
	var b *Breaker

	assert.NoError(t, b.Allow())
	b.Record(false)
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "CLOSED", b.Metrics().CurrentState)
}
