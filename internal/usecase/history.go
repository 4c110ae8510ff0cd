package usecase

import (
	"context"
	"errors"
	"strings"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
)

// ErrHistoryDisabled is returned when no result store is configured.
var ErrHistoryDisabled = errors.New("valuation history is disabled")

// History lists archived DCF valuations.
type History struct {
	store drepo.ResultStore
}

// NewHistory accepts a nil store; every call then returns ErrHistoryDisabled.
func NewHistory(store drepo.ResultStore) *History {
	return &History{store: store}
}

func (h *History) Enabled() bool { return h != nil && h.store != nil }

func (h *History) ListDCF(ctx context.Context, req models.HistoryRequest) ([]models.DCFSummary, error) {
	if !h.Enabled() {
		return nil, ErrHistoryDisabled
	}
	return h.store.ListDCF(ctx, strings.ToUpper(strings.TrimSpace(req.Ticker)), req.Limit)
}
