// Package resilience guards calls to flaky external services.
//
// Breaker is a three-state circuit breaker (closed, open, half-open). After
// enough consecutive failures it rejects calls outright until a cooldown
// passes, then lets a few probe calls through to decide whether the service
// recovered. GuardProvider applies a breaker to an NLP backend so a dead
// gateway fails fast instead of eating a full timeout per chat request.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects every call with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen forwards a limited number of probe calls; their outcome
	// decides whether the breaker closes again or re-opens.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Breaker is a circuit breaker. Construct it with [NewBreaker]; the zero
// value is not usable.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probes   int

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeUsed int
	probeOK   int
}

// BreakerOption configures a [Breaker].
type BreakerOption func(*Breaker)

// WithTripAfter sets how many consecutive failures open the breaker.
// The default is 5.
func WithTripAfter(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.trip = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before probing the
// service again. The default is 30 seconds.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithProbes sets how many successful half-open probes close the breaker.
// The default is 3.
func WithProbes(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.probes = n
		}
	}
}

// NewBreaker creates a closed [Breaker]. name appears in log lines.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:     name,
		trip:     5,
		cooldown: 30 * time.Second,
		probes:   3,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do runs fn unless the breaker is open, in which case it returns [ErrOpen]
// without calling fn. The call's outcome feeds the breaker's state.
func (b *Breaker) Do(fn func() error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn()
	b.settle(probing, callErr == nil)
	return callErr
}

// admit decides whether a call may proceed and reports whether it counts
// toward the half-open probe quota.
func (b *Breaker) admit() (probing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.probeUsed = 0
		b.probeOK = 0
		slog.Info("circuit half-open, probing", slog.String("breaker", b.name))
		fallthrough
	case HalfOpen:
		if b.probeUsed >= b.probes {
			return false, ErrOpen
		}
		b.probeUsed++
		return true, nil
	default:
		return false, nil
	}
}

// settle records a call outcome.
func (b *Breaker) settle(probing, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !ok && probing:
		// One failed probe re-opens immediately.
		b.state = Open
		b.openedAt = time.Now()
		b.failures = b.trip
		slog.Warn("circuit re-opened", slog.String("breaker", b.name))

	case !ok:
		b.failures++
		if b.state == Closed && b.failures >= b.trip {
			b.state = Open
			b.openedAt = time.Now()
			slog.Warn("circuit opened",
				slog.String("breaker", b.name),
				slog.Int("consecutive_failures", b.failures))
		}

	case probing:
		b.probeOK++
		if b.probeOK >= b.probes {
			b.state = Closed
			b.failures = 0
			slog.Info("circuit closed", slog.String("breaker", b.name))
		}

	default:
		b.failures = 0
	}
}

// State reports the breaker's state. An open breaker whose cooldown has
// elapsed reports [HalfOpen]; the transition itself happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probeUsed = 0
	b.probeOK = 0
}
