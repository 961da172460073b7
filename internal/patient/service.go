package patient

import (
	"context"
	"log/slog"

	"github.com/pulseroute/platform/internal/hospital"
	"github.com/pulseroute/platform/internal/matching"
	"github.com/pulseroute/platform/internal/shared/events"
	"github.com/pulseroute/platform/internal/shared/metrics"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// RegisterResult is the outcome of a registration: the stored patient and
// the transfer requests fanned out for it. Requests is empty when no
// hospital was in range.
type RegisterResult struct {
	Patient  *Patient         `json:"patient"`
	Requests []domain.Request `json:"transfer_requests"`
}

// Service runs the registration pipeline: persist the patient, select
// candidate hospitals, rank them, and fan transfer requests out
type Service struct {
	repo       Repository
	hospitals  hospital.Repository
	store      domain.Store
	geo        *matching.GeoIndex
	scorer     *matching.Scorer
	dispatcher *matching.Dispatcher
	bus        *events.Bus
	logger     *slog.Logger
}

// NewService creates a patient service
func NewService(
	repo Repository,
	hospitals hospital.Repository,
	store domain.Store,
	geo *matching.GeoIndex,
	scorer *matching.Scorer,
	dispatcher *matching.Dispatcher,
	bus *events.Bus,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		hospitals:  hospitals,
		store:      store,
		geo:        geo,
		scorer:     scorer,
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger,
	}
}

// Register stores a new patient and immediately runs the matching
// pipeline. A patient with no hospital in range stays searching with zero
// requests; that is a success, not an error.
func (s *Service) Register(ctx context.Context, unitID types.ID, in RegisterInput) (*RegisterResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := NewPatient(unitID, in)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	metrics.RecordPatientRegistered(p.SeverityCode)
	s.publish(ctx, events.TypePatientRegistered, p.UnitID, map[string]any{
		"patient_id":    p.ID,
		"severity_code": p.SeverityCode,
	})

	hospitals, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}

	info := matchInfo(p)
	candidates := s.geo.Candidates(p.Location, hospitals)
	ranking := s.scorer.Score(ctx, info, candidates)

	created, err := s.dispatcher.Dispatch(ctx, info, ranking)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.Request, 0, len(created))
	for _, req := range created {
		requests = append(requests, *req)
		s.publish(ctx, events.TypeTransferRequested, p.UnitID, map[string]any{
			"request_id":  req.ID,
			"patient_id":  req.PatientID,
			"hospital_id": req.HospitalID,
			"rank_score":  req.RankScore,
		})
	}

	if len(requests) > 0 {
		p.Status = StatusMatched
	} else {
		s.logger.Info("no hospitals in range, patient stays searching",
			"patient_id", p.ID)
	}

	return &RegisterResult{Patient: p, Requests: requests}, nil
}

// Get returns a patient with its transfer requests
func (s *Service) Get(ctx context.Context, id types.ID) (*RegisterResult, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	requests, err := s.store.ListByPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{Patient: p, Requests: requests}, nil
}

// ListByUnit returns the patients an EMS unit has registered
func (s *Service) ListByUnit(ctx context.Context, unitID types.ID) ([]Patient, error) {
	return s.repo.ListByUnit(ctx, unitID)
}

// matchInfo projects the patient onto what the matching pipeline consumes
func matchInfo(p *Patient) matching.PatientInfo {
	return matching.PatientInfo{
		ID:           p.ID,
		UnitID:       p.UnitID,
		Location:     p.Location,
		DiseaseCode:  p.DiseaseCode,
		SeverityCode: p.SeverityCode,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, actorID types.ID, data map[string]any) {
	event := events.NewEvent(eventType, "patient-service", data).WithActor(actorID, "ems")
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
