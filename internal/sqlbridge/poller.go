package sqlbridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultInterval is the fixed wait between status refreshes.
	DefaultInterval = 2 * time.Second

	// DefaultDeadline caps the total time a statement may be polled.
	// A zero deadline disables the cap and polls until terminal.
	DefaultDeadline = 5 * time.Minute
)

// RefreshFunc fetches the current view of a statement from the engine.
type RefreshFunc func(ctx context.Context) (*Statement, error)

// Poller drives a submitted statement to a terminal state: wait a fixed
// interval, refresh, repeat while the state is PENDING or RUNNING.
//
// A statement that is already terminal returns immediately, with no sleep
// and no refresh. The overall deadline is checked before each sleep; the
// engine's own submission wait hint does not bound the loop.
type Poller struct {
	interval time.Duration
	deadline time.Duration

	// sleep is swapped in tests to count waits without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// PollerOption configures a [Poller].
type PollerOption func(*Poller)

// WithInterval overrides the wait between refreshes.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDeadline overrides the overall polling cap. Zero disables the cap.
func WithDeadline(d time.Duration) PollerOption {
	return func(p *Poller) { p.deadline = d }
}

// NewPoller returns a Poller with [DefaultInterval] and [DefaultDeadline],
// adjusted by opts.
func NewPoller(opts ...PollerOption) *Poller {
	p := &Poller{
		interval: DefaultInterval,
		deadline: DefaultDeadline,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Wait polls st until it reaches a terminal state and returns the terminal
// statement. FAILED statements return a [*QueryError] with the engine's
// error detail. When the configured deadline expires first, Wait returns an
// error wrapping [ErrPollDeadline]. Context cancellation aborts the wait
// between iterations.
func (p *Poller) Wait(ctx context.Context, st *Statement, refresh RefreshFunc) (*Statement, error) {
	var deadline time.Time
	if p.deadline > 0 {
		deadline = time.Now().Add(p.deadline)
	}

	for !st.State.Terminal() {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, fmt.Errorf("sqlbridge: statement %s: %w", st.ID, ErrPollDeadline)
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}

		next, err := refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("sqlbridge: refresh statement %s: %w", st.ID, err)
		}
		slog.Debug("statement polled", "id", next.ID, "state", next.State)
		st = next
	}

	if st.State == StateFailed {
		return nil, &QueryError{StatementID: st.ID, Detail: st.Detail}
	}
	return st, nil
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
