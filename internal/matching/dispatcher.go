package matching

import (
	"context"
	"log/slog"

	"github.com/pulseroute/platform/internal/shared/metrics"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// Dispatcher fans a ranked candidate set out into pending transfer
// requests, capped at the configured width
type Dispatcher struct {
	store  domain.Store
	width  int
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher writing through the given store
func NewDispatcher(store domain.Store, width int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, width: width, logger: logger}
}

// Dispatch creates one pending request per ranked candidate, best ranked
// first, up to the fan-out width. The store applies all requests and the
// patient's transition to matched atomically; on failure nothing is
// created and the patient stays searching. An empty ranking is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, p PatientInfo, ranking Ranking) ([]*domain.Request, error) {
	candidates := ranking.Candidates
	if len(candidates) > d.width {
		candidates = candidates[:d.width]
	}

	requests := make([]*domain.Request, 0, len(candidates))
	for _, c := range candidates {
		requests = append(requests, domain.NewRequest(
			p.ID, p.UnitID, c.Hospital.ID, c.Score, c.DistanceKM,
		))
	}

	if len(requests) == 0 {
		metrics.RecordFanOut(0)
		return nil, nil
	}

	if err := d.store.CreateFanOut(ctx, p.ID, requests); err != nil {
		return nil, err
	}

	metrics.RecordFanOut(len(requests))
	d.logger.Info("transfer requests dispatched",
		"patient_id", p.ID,
		"requests", len(requests),
		"ranking_source", ranking.Source)

	return requests, nil
}
