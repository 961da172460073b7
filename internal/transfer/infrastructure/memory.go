package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pulseroute/platform/internal/patient"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// MemoryStore implements domain.Store in memory for tests and local
// development. One mutex guards both tables, so transitions are atomic
// exactly as they are in the PostgreSQL store.
type MemoryStore struct {
	mu       sync.Mutex
	patients map[types.ID]*patient.Patient
	requests map[types.ID]*domain.Request
}

// NewMemoryStore creates an empty in-memory transfer store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[types.ID]*patient.Patient),
		requests: make(map[types.ID]*domain.Request),
	}
}

// SeedPatient registers a patient with the store. Transitions operate on
// the stored copy.
func (s *MemoryStore) SeedPatient(p *patient.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patients[p.ID] = &cp
}

// PatientStatus reports the stored patient's status
func (s *MemoryStore) PatientStatus(id types.ID) (patient.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return "", false
	}
	return p.Status, true
}

// CreateFanOut inserts the pending requests and marks the patient matched
func (s *MemoryStore) CreateFanOut(ctx context.Context, patientID types.ID, requests []*domain.Request) error {
	if len(requests) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[patientID]
	if !ok {
		return errors.NotFound("patient", patientID.String())
	}
	if p.Status != patient.StatusSearching {
		return errors.Conflict("patient is not in the searching state")
	}

	p.Status = patient.StatusMatched
	p.UpdatedAt = time.Now().UTC()
	for _, req := range requests {
		cp := *req
		s.requests[req.ID] = &cp
	}

	return nil
}

// Get finds a request by ID
func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFound("transfer request", id.String())
	}
	cp := *req
	return &cp, nil
}

// ListByPatient returns all requests for a patient, best ranked first
func (s *MemoryStore) ListByPatient(ctx context.Context, patientID types.ID) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.collect(func(r *domain.Request) bool { return r.PatientID == patientID })
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].RankScore != requests[j].RankScore {
			return requests[i].RankScore > requests[j].RankScore
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

// ListPendingByHospital returns a hospital's open work queue, oldest first
func (s *MemoryStore) ListPendingByHospital(ctx context.Context, hospitalID types.ID) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.collect(func(r *domain.Request) bool {
		return r.HospitalID == hospitalID && r.Status == domain.StatusPending
	})
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

// ListResolvedByHospital returns a hospital's terminal requests, newest first
func (s *MemoryStore) ListResolvedByHospital(ctx context.Context, hospitalID types.ID) ([]domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := s.collect(func(r *domain.Request) bool {
		return r.HospitalID == hospitalID && r.Status != domain.StatusPending
	})
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].UpdatedAt.Equal(requests[j].UpdatedAt) {
			return requests[i].UpdatedAt.After(requests[j].UpdatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
	return requests, nil
}

// ResolveAccept performs the winner-take-all transition
func (s *MemoryStore) ResolveAccept(ctx context.Context, requestID types.ID) (*domain.AcceptOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, errors.NotFound("transfer request", requestID.String())
	}
	if req.Status != domain.StatusPending {
		return nil, errors.Conflict("transfer request is already " + string(req.Status))
	}

	p, ok := s.patients[req.PatientID]
	if !ok {
		return nil, errors.NotFound("patient", req.PatientID.String())
	}
	if p.Status == patient.StatusTransferred {
		return nil, errors.Conflict("patient is already transferred")
	}

	now := time.Now().UTC()
	req.Status = domain.StatusAccepted
	req.UpdatedAt = now
	p.Status = patient.StatusTransferred
	p.UpdatedAt = now

	var cancelled []domain.Request
	for _, sibling := range s.requests {
		if sibling.PatientID == req.PatientID && sibling.ID != req.ID && sibling.Status == domain.StatusPending {
			sibling.Status = domain.StatusCancelled
			sibling.RejectionReason = domain.CancelReasonSuperseded
			sibling.UpdatedAt = now
			cancelled = append(cancelled, *sibling)
		}
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].ID < cancelled[j].ID })

	winner := *req
	return &domain.AcceptOutcome{Winner: &winner, Cancelled: cancelled}, nil
}

// ResolveReject marks a pending request rejected with the given reason
func (s *MemoryStore) ResolveReject(ctx context.Context, requestID types.ID, reason string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, errors.NotFound("transfer request", requestID.String())
	}
	if req.Status != domain.StatusPending {
		return nil, errors.Conflict("transfer request is already " + string(req.Status))
	}

	req.Status = domain.StatusRejected
	req.RejectionReason = reason
	req.UpdatedAt = time.Now().UTC()

	cp := *req
	return &cp, nil
}

func (s *MemoryStore) collect(match func(*domain.Request) bool) []domain.Request {
	var out []domain.Request
	for _, req := range s.requests {
		if match(req) {
			out = append(out, *req)
		}
	}
	return out
}
