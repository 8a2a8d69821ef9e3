package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrOpen is returned by Allow while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
}

// Breaker guards the venue against bursts of calls while it is failing.
// A nil *Breaker allows everything.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	config  Config
	now     func() time.Time
	logger  zerolog.Logger
	metrics metrics
}

type metrics struct {
	total        atomic.Int64
	rejected     atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	stateChanges atomic.Int32
}

type Option func(*Breaker)

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Breaker) {
		b.logger = l
	}
}

func New(config Config, opts ...Option) *Breaker {
	b := &Breaker{
		config: config,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports ErrOpen while the breaker is open. Once the timeout has
// elapsed the breaker turns half-open and lets calls through as probes.
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	b.metrics.total.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			b.metrics.rejected.Add(1)
			return ErrOpen
		}
		b.transitionLocked(StateHalfOpen)
	}
	return nil
}

// Record feeds the outcome of an admitted call back into the breaker.
func (b *Breaker) Record(success bool) {
	if b == nil {
		return
	}
	if success {
		b.metrics.succeeded.Add(1)
	} else {
		b.metrics.failed.Add(1)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.FailThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			b.transitionLocked(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	case StateOpen:
		// Late outcome of a call admitted before the breaker opened.
		if !success {
			b.openedAt = b.now()
		}
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	b.metrics.stateChanges.Add(1)

	b.logger.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state change")
}

func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

func (b *Breaker) Metrics() MetricsSnapshot {
	if b == nil {
		return MetricsSnapshot{CurrentState: StateClosed.String()}
	}
	return MetricsSnapshot{
		TotalRequests:    b.metrics.total.Load(),
		RejectedRequests: b.metrics.rejected.Load(),
		SuccessRequests:  b.metrics.succeeded.Load(),
		FailedRequests:   b.metrics.failed.Load(),
		StateChanges:     b.metrics.stateChanges.Load(),
		CurrentState:     b.State().String(),
	}
}

type MetricsSnapshot struct {
	TotalRequests    int64
	RejectedRequests int64
	SuccessRequests  int64
	FailedRequests   int64
	StateChanges     int32
	CurrentState     string
}
