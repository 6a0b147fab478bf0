// Package worker runs the background maintenance loop of the accounts service.
package worker

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Purger clears expired password reset digests in batches.
type Purger interface {
	PurgeExpiredResets(ctx context.Context, batch int) (int, error)
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// StepTimeout bounds a single purge pass.
	StepTimeout time.Duration
}

type Sweeper struct {
	cfg    Config
	purger Purger
	log    *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, purger Purger, log *slog.Logger) *Sweeper {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{cfg: cfg, purger: purger, log: log}
}

// Run sweeps on every tick until ctx is done. A full batch is followed by another pass
// straight away; failures back off exponentially.
func (w *Sweeper) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	attempt := 0
	wait := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper_stopping")
			return nil
		case <-time.After(wait):
		}

		n, err := w.Step(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			wait = ExponentialBackoff(attempt)
			attempt++
			w.log.Error("sweep_failed", "err", err, "attempt", attempt, "retry_in", wait.String())
		case n >= w.cfg.BatchSize:
			attempt, wait = 0, 0
		default:
			attempt, wait = 0, w.cfg.PollInterval
		}
	}
}

// Step runs one bounded purge pass.
func (w *Sweeper) Step(ctx context.Context) (int, error) {
	stepCtx, cancel := context.WithTimeout(ctx, w.cfg.StepTimeout)
	defer cancel()

	n, err := w.purger.PurgeExpiredResets(stepCtx, w.cfg.BatchSize)
	if n > 0 {
		w.log.Info("reset_tokens_purged", "count", n)
	}
	return n, err
}

func (w *Sweeper) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Sweeper) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// ExponentialBackoff doubles from 2s per attempt up to 5m, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}
