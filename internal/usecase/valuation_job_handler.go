package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinValue/internal/domain/models"
	xhttp "FinValue/pkg/http"
	"FinValue/pkg/kafka"
	"FinValue/pkg/logger"
)

var _ kafka.MessageHandler = (*ValuationJobHandler)(nil)

// ValuationJobHandler runs valuation jobs consumed from the request topic.
// Bad input and domain failures are permanent; anything else is retried.
type ValuationJobHandler struct {
	topic   string
	comps   *CompsAnalysis
	dcf     *DCFAnalysis
	tracker *JobTracker
	log     *logger.Logger
}

func NewValuationJobHandler(topic string, comps *CompsAnalysis, dcf *DCFAnalysis, tracker *JobTracker, log *logger.Logger) *ValuationJobHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ValuationJobHandler{topic: topic, comps: comps, dcf: dcf, tracker: tracker, log: log}
}

func (h *ValuationJobHandler) Topic() string { return h.topic }

func (h *ValuationJobHandler) Handle(ctx context.Context, b []byte) error {
	var job models.ValuationJob
	if err := json.Unmarshal(b, &job); err != nil {
		return kafka.Permanent(fmt.Errorf("decode job: %w", err))
	}
	if job.ID == "" {
		return kafka.Permanent(errors.New("job id is required"))
	}
	if err := checkJob(job); err != nil {
		return kafka.Permanent(err)
	}
	if err := h.validate(ctx, job); err != nil {
		_ = h.tracker.Fail(ctx, job, err)
		return kafka.Permanent(err)
	}

	ok, err := h.tracker.Begin(ctx, job)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	if !ok {
		h.log.Debug("job already taken", logger.String("job_id", job.ID))
		return nil
	}

	reportID, err := h.run(ctx, job)
	if err != nil {
		if isFinal(err) {
			_ = h.tracker.Fail(ctx, job, err)
			return kafka.Permanent(err)
		}
		_ = h.tracker.Release(ctx, job.ID)
		return err
	}
	return h.tracker.Done(ctx, job, reportID)
}

func (h *ValuationJobHandler) validate(ctx context.Context, job models.ValuationJob) error {
	var v interface{}
	if job.Comp != nil {
		v = xhttp.ValidateStruct(ctx, job.Comp)
	} else {
		v = xhttp.ValidateStruct(ctx, job.DCF)
	}
	if v == nil {
		return nil
	}
	if err := xhttp.ValidationErrors(v); err != nil {
		return err
	}
	return fmt.Errorf("invalid request: %v", v)
}

func (h *ValuationJobHandler) run(ctx context.Context, job models.ValuationJob) (string, error) {
	switch job.Type {
	case models.JobComps:
		rep, err := h.comps.Run(ctx, *job.Comp)
		if err != nil {
			return "", err
		}
		return rep.ID, nil
	default:
		rep, err := h.dcf.Run(ctx, *job.DCF)
		if err != nil {
			return "", err
		}
		return rep.ID, nil
	}
}

// isFinal reports errors that a retry cannot fix.
func isFinal(err error) bool {
	var missing *models.MissingDataError
	return models.IsDomainError(err) || errors.As(err, &missing)
}
