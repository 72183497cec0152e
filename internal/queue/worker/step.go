package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/jobs"
	"github.com/geocoder89/coursehub/internal/notifications"
)

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent failure")

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	log := w.log.With("job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)

	// in-flight jobs finish even when shutdown has started
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancel()

	start := w.now()
	err = w.execute(runCtx, j)
	elapsed := w.now().Sub(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		w.handleFailure(runCtx, j, err)
		return true, nil
	}

	if err := w.repo.MarkDone(runCtx, j.ID); err != nil {
		_ = w.repo.MarkFailed(runCtx, j.ID, "mark_done_failed: "+err.Error())
		w.prom.ObserveJob(j.Type, "error", elapsed)
		return true, err
	}

	w.metrics.IncDone()
	w.prom.ObserveJob(j.Type, "done", elapsed)
	log.Info("job done", "duration_ms", elapsed.Milliseconds())
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	switch p := payload.(type) {
	case jobs.WelcomeEmailPayload:
		return w.notifier.SendWelcome(ctx, notifications.WelcomeInput{
			UserID:    p.UserID,
			Email:     p.Email,
			FirstName: p.FirstName,
		})
	default:
		return fmt.Errorf("%w: no handler for %s", errPermanent, j.Type)
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) {
	msg := cause.Error()
	log := w.log.With("job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)

	if errors.Is(cause, errPermanent) || j.Exhausted() {
		w.metrics.IncFailed()
		w.metrics.IncDeadLettered()
		w.prom.ObserveJob(j.Type, "failed", 0)
		log.Error("job failed permanently", "err", cause)

		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			log.Error("mark failed", "err", err)
		}
		return
	}

	delay := w.backoff(j.Attempts)
	w.metrics.IncRetried()
	w.prom.ObserveJob(j.Type, "retried", 0)
	log.Warn("job failed, retrying", "err", cause, "retry_in", delay)

	if err := w.repo.Reschedule(ctx, j.ID, w.now().Add(delay).UTC(), msg); err != nil {
		log.Error("reschedule", "err", err)
	}
}
