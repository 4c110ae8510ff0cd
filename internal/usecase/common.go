package usecase

import (
	"context"
	"errors"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	"FinValue/pkg/logger"
)

// resultLabel buckets a run outcome for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case models.IsDomainError(err):
		return "domain_error"
	case errors.Is(err, models.ErrProviderUnavailable):
		return "provider_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// saveAll hands a finished report to every sink. Sink failures are logged and
// counted but never fail the valuation.
func saveAll(ctx context.Context, log *logger.Logger, m drepo.Metrics, sinks []drepo.ResultSink, save func(context.Context, drepo.ResultSink) error) {
	// a client hanging up after the report is built should not lose the result
	ctx = context.WithoutCancel(ctx)
	for _, s := range sinks {
		if err := save(ctx, s); err != nil {
			m.RecordError("sink")
			log.Error("save report failed", logger.Error(err))
		}
	}
}
