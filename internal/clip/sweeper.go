package clip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is an extra reclamation step run at the end of every sweep pass, for
// example purging expired idempotency records. Run returns how many items it
// removed.
type Task struct {
	Name string
	Run  func(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically removes expired records from a Store's backend. It
// works in pages and deletes one record per backend call, so foreground
// operations are never blocked for longer than a single removal.
type Sweeper struct {
	store    *Store
	interval time.Duration
	batch    int
	tasks    []Task
}

// NewSweeper returns a Sweeper for s. Non-positive interval or batch values
// fall back to 60s and 500.
func NewSweeper(s *Store, interval time.Duration, batch int, tasks ...Task) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 500
	}
	return &Sweeper{store: s, interval: interval, batch: batch, tasks: tasks}
}

// Run sweeps on every tick until ctx is cancelled. Failures are logged and the
// pass is retried on the next tick; Run itself only returns nil.
func (w *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	logger := log.With().Str("component", "sweeper").Logger()
	logger.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sweeper stopped")
			return nil
		case <-t.C:
			n, err := w.SweepOnce(ctx)
			if err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Int("removed", n).Msg("sweep pass incomplete")
				continue
			}
			if n > 0 {
				logger.Debug().Int("removed", n).Msg("sweep pass finished")
			}
		}
	}
}

// SweepOnce performs one full pass: it pages through expired codes, removes
// each with a conditional delete, then runs the extra tasks. It returns the
// number of clips removed and the joined errors of the pass.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	var errs []error
	removed := 0
	b := w.store.backend

	for ctx.Err() == nil {
		now := w.store.now()
		codes, err := b.ExpiredCodes(ctx, now, w.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("list expired: %w", err))
			break
		}
		if len(codes) == 0 {
			break
		}

		page := 0
		for _, code := range codes {
			ok, err := b.DeleteExpired(ctx, code, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", code, err))
				continue
			}
			if ok {
				page++
				w.store.removed(code, ReasonSweep)
			}
		}
		removed += page

		// A short page means the backlog is drained; an empty one means the
		// remaining codes keep failing and will be retried next tick.
		if len(codes) < w.batch || page == 0 {
			break
		}
	}

	for _, task := range w.tasks {
		n, err := task.Run(ctx, w.store.now())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
			continue
		}
		if n > 0 {
			log.Debug().Str("component", "sweeper").Str("task", task.Name).Int("removed", n).Msg("task finished")
		}
	}

	if total, err := b.Count(ctx); err == nil {
		clipsStored.Set(float64(total))
	}

	err := errors.Join(errs...)
	if err != nil {
		sweepErrors.Add(float64(len(errs)))
	}
	return removed, err
}
