// Package worker drains the notification outbox: it claims pending jobs,
// delivers them and reschedules failures with backoff.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/notifications"
	"github.com/geocoder89/coursehub/internal/observability"
)

var ErrShutdownTimeout = errors.New("worker: shutdown grace exceeded")

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID      string
	Concurrency   int
	PollInterval  time.Duration
	ShutdownGrace time.Duration
	// LockTTL is how long a job may stay processing before another worker
	// may take it over.
	LockTTL time.Duration
	// JobTimeout bounds a single delivery.
	JobTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		c.WorkerID = "worker"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 15 * time.Second
	}
	return c
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
	metrics  *observability.JobMetrics
	backoff  func(attempt int) time.Duration
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, log *slog.Logger, prom *observability.Prom) *Worker {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log.With("worker_id", cfg.WorkerID),
		prom:     prom,
		metrics:  observability.NewJobMetrics(),
		backoff:  ExponentialBackoff,
		now:      time.Now,
	}
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Metrics() observability.JobMetricsSnapshot {
	return w.metrics.Snapshot()
}

// Run blocks until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency, "poll", w.cfg.PollInterval)
	w.setReady(true)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapStale(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker drained")
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		return ErrShutdownTimeout
	}
}

func (w *Worker) loop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// drain while there is work, then sleep one poll interval
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				w.log.Error("process job", "err", err)
				break
			}
			if !processed {
				break
			}
		}

		timer.Reset(w.cfg.PollInterval)
	}
}

func (w *Worker) reapStale(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.Warn("requeue stale jobs", "err", err)
				continue
			}
			if n > 0 {
				w.log.Info("requeued stale jobs", "count", n)
			}
		}
	}
}
