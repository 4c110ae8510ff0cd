package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"FinValue/internal/domain/models"
	"FinValue/pkg/logger"
)

// ErrJobsDisabled is returned when job intake is not configured.
var ErrJobsDisabled = errors.New("valuation jobs are disabled")

// JobPublisher writes a message to a topic.
type JobPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// JobSubmitter queues valuation jobs on the request topic.
type JobSubmitter struct {
	publisher JobPublisher
	topic     string
	tracker   *JobTracker
	log       *logger.Logger
	newID     func() string
}

// NewJobSubmitter accepts a nil publisher; Submit then returns ErrJobsDisabled.
func NewJobSubmitter(publisher JobPublisher, topic string, tracker *JobTracker, log *logger.Logger) *JobSubmitter {
	if log == nil {
		log = logger.Nop()
	}
	return &JobSubmitter{publisher: publisher, topic: topic, tracker: tracker, log: log, newID: uuid.NewString}
}

func (s *JobSubmitter) Enabled() bool { return s != nil && s.publisher != nil && s.tracker != nil }

// Submit assigns the job an id when it has none, records it as queued and publishes it.
func (s *JobSubmitter) Submit(ctx context.Context, job models.ValuationJob) (*models.JobStatus, error) {
	if !s.Enabled() {
		return nil, ErrJobsDisabled
	}
	if err := checkJob(job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = s.newID()
	}
	if err := s.tracker.Queued(ctx, job); err != nil {
		return nil, err
	}
	key := []byte(strings.ToUpper(job.Ticker()))
	if err := s.publisher.Publish(ctx, s.topic, key, job); err != nil {
		_ = s.tracker.Fail(ctx, job, err)
		return nil, fmt.Errorf("submit job %s: %w", job.ID, err)
	}
	s.log.Info("valuation job queued",
		logger.String("job_id", job.ID),
		logger.String("type", string(job.Type)),
		logger.String("ticker", job.Ticker()),
	)
	return s.tracker.Status(ctx, job.ID)
}

// checkJob verifies that the job carries exactly the request its type names.
func checkJob(job models.ValuationJob) error {
	switch job.Type {
	case models.JobComps:
		if job.Comp == nil || job.DCF != nil {
			return models.NewDomainError("job", "comps job must carry only a comps request")
		}
	case models.JobDCF:
		if job.DCF == nil || job.Comp != nil {
			return models.NewDomainError("job", "dcf job must carry only a dcf request")
		}
	default:
		return models.NewDomainError("job", "unknown job type %q", job.Type)
	}
	return nil
}
