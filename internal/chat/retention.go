package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/heravelli/tollgate/internal/observe"
)

// defaultSweepSchedule is how often stored transcripts are pruned.
const defaultSweepSchedule = "@hourly"

// sweepTimeout bounds one sweep run.
const sweepTimeout = time.Minute

// Sweeper prunes persisted chat sessions older than the retention window on
// a cron schedule. All exported methods are safe for concurrent use; the
// store serializes the deletes.
type Sweeper struct {
	store     *Store
	retention time.Duration
	schedule  string
	cron      *cron.Cron
}

// SweeperOption configures a [Sweeper].
type SweeperOption func(*Sweeper)

// WithSchedule overrides the sweep schedule. Standard cron expressions and
// the @-descriptors are accepted, e.g. "@every 10m" or "0 3 * * *".
func WithSchedule(expr string) SweeperOption {
	return func(s *Sweeper) { s.schedule = expr }
}

// NewSweeper creates a sweeper that keeps sessions younger than retention.
// A non-positive retention disables sweeping entirely.
func NewSweeper(store *Store, retention time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:     store,
		retention: retention,
		schedule:  defaultSweepSchedule,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start schedules periodic sweeps. It returns immediately; sweeps run on the
// cron's own goroutine until [Sweeper.Stop].
func (s *Sweeper) Start() error {
	if s.retention <= 0 {
		slog.Info("transcript retention disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("chat: schedule retention sweep: %w", err)
	}
	s.cron.Start()

	slog.Info("transcript retention scheduled",
		slog.String("schedule", s.schedule),
		slog.Duration("retention", s.retention))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish. Safe to
// call without a prior Start.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepNow prunes immediately and reports how many sessions were removed.
func (s *Sweeper) SweepNow(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("chat: retention sweep: %w", err)
	}
	if deleted > 0 {
		observe.Logger(ctx).Info("pruned chat sessions",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// sweep adapts SweepNow to the cron callback signature.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.SweepNow(ctx); err != nil {
		observe.Logger(ctx).Warn("retention sweep failed", slog.String("error", err.Error()))
	}
}
