package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinValue/internal/domain/models"
	"FinValue/pkg/cache"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// JobTracker keeps job status records and a per-job processing lock.
type JobTracker struct {
	store     cache.Service
	statusTTL time.Duration
	lockTTL   time.Duration
	now       func() time.Time
}

func NewJobTracker(store cache.Service, statusTTL, lockTTL time.Duration) *JobTracker {
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &JobTracker{store: store, statusTTL: statusTTL, lockTTL: lockTTL, now: time.Now}
}

func statusKey(id string) string { return cache.Key("job", id, "status") }
func lockKey(id string) string   { return cache.Key("job", id, "lock") }

// Status returns the latest recorded status of a job.
func (t *JobTracker) Status(ctx context.Context, id string) (*models.JobStatus, error) {
	st, err := cache.GetJSON[models.JobStatus](ctx, t.store, statusKey(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job status %s: %w", id, err)
	}
	return &st, nil
}

// Queued records a freshly submitted job.
func (t *JobTracker) Queued(ctx context.Context, job models.ValuationJob) error {
	return t.put(ctx, models.JobStatus{ID: job.ID, Type: job.Type, Ticker: job.Ticker(), State: models.JobQueued})
}

// Begin takes the processing lock for a job. It returns false when another
// worker holds the lock or the job already finished.
func (t *JobTracker) Begin(ctx context.Context, job models.ValuationJob) (bool, error) {
	prev, err := t.Status(ctx, job.ID)
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		return false, err
	}
	if prev != nil && (prev.State == models.JobDone || prev.State == models.JobFailed) {
		return false, nil
	}
	ok, err := t.store.TryLock(ctx, lockKey(job.ID), t.lockTTL)
	if err != nil || !ok {
		return false, err
	}
	attempts := 1
	if prev != nil {
		attempts = prev.Attempts + 1
	}
	st := models.JobStatus{ID: job.ID, Type: job.Type, Ticker: job.Ticker(), State: models.JobRunning, Attempts: attempts}
	if err := t.put(ctx, st); err != nil {
		_ = t.Release(ctx, job.ID)
		return false, err
	}
	return true, nil
}

// Done marks a job finished with the id of the report it produced.
func (t *JobTracker) Done(ctx context.Context, job models.ValuationJob, reportID string) error {
	return t.finish(ctx, job, models.JobDone, reportID, "")
}

// Fail marks a job permanently failed.
func (t *JobTracker) Fail(ctx context.Context, job models.ValuationJob, cause error) error {
	return t.finish(ctx, job, models.JobFailed, "", cause.Error())
}

// Release drops the processing lock so a redelivery can retry the job.
func (t *JobTracker) Release(ctx context.Context, id string) error {
	return t.store.Delete(ctx, lockKey(id))
}

func (t *JobTracker) finish(ctx context.Context, job models.ValuationJob, state models.JobState, reportID, msg string) error {
	st := models.JobStatus{ID: job.ID, Type: job.Type, Ticker: job.Ticker(), State: state, ReportID: reportID, Error: msg}
	if prev, err := t.Status(ctx, job.ID); err == nil {
		st.Attempts = prev.Attempts
	}
	if err := t.put(ctx, st); err != nil {
		return err
	}
	return t.Release(ctx, job.ID)
}

func (t *JobTracker) put(ctx context.Context, st models.JobStatus) error {
	st.UpdatedAt = t.now().UTC()
	if err := cache.SetJSON(ctx, t.store, statusKey(st.ID), st, t.statusTTL); err != nil {
		return fmt.Errorf("job status %s: %w", st.ID, err)
	}
	return nil
}
