package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/accounthub/internal/jobs"
	"github.com/geocoder89/accounthub/internal/notifications"
	"github.com/geocoder89/accounthub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (jobs.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

type Config struct {
	PollInterval time.Duration
	WorkerID     string
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	prom     *observability.Prom
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, log *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log,
		prom:     prom,
	}
}

// Run polls for runnable jobs until the context is cancelled. When a job
// was processed it immediately polls again, so a backlog drains without
// waiting out the ticker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil

		case <-ticker.C:
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					w.log.Error("process job", "err", err)
				}

				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessOne claims and executes at most one job. The bool reports whether
// a job was claimed at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	result := "done"

	if err != nil {
		result = w.handleFailure(ctx, j, err)
	} else if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		w.log.Error("mark done", "job_id", j.ID, "err", err)
	}

	if w.prom != nil {
		w.prom.JobResults.WithLabelValues(string(j.Type), result).Inc()
		w.prom.JobDuration.WithLabelValues(string(j.Type), result).Observe(time.Since(start).Seconds())
	}

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	decoded, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	switch p := decoded.(type) {
	case jobs.WelcomeEmailPayload:
		return w.notifier.SendWelcomeEmail(ctx, notifications.SendWelcomeEmailInput{
			UserID:    p.UserID,
			Email:     p.Email,
			FirstName: p.FirstName,
		})

	default:
		return fmt.Errorf("%w: %T", jobs.ErrInvalidJobType, decoded)
	}
}

// handleFailure retries with backoff until the attempts budget runs out,
// then parks the job as failed. Undecodable payloads fail immediately;
// retrying those cannot help.
func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) string {
	permanent := errors.Is(cause, jobs.ErrInvalidJobType) || errors.Is(cause, jobs.ErrInvalidJobPayload)

	if permanent || j.Attempts >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.Error("mark failed", "job_id", j.ID, "err", err)
		}

		w.log.Warn("job failed permanently", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts, "err", cause)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		w.log.Error("reschedule", "job_id", j.ID, "err", err)
		return "failed"
	}

	w.log.Info("job rescheduled", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts, "run_at", runAt)
	return "retry"
}
