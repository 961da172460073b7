package transfer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pulseroute/platform/internal/chat"
	"github.com/pulseroute/platform/internal/patient"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
	"github.com/pulseroute/platform/internal/transfer/infrastructure"
)

type fixture struct {
	service  *Service
	store    *infrastructure.MemoryStore
	channels *chat.MemoryRepository
	patient  *patient.Patient
	requests []*domain.Request
}

func hospitalActor(id types.ID) *auth.Actor {
	return &auth.Actor{ID: id, Type: auth.ActorTypeHospital, Name: "hospital"}
}

// newFixture seeds a matched patient with n pending sibling requests
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := infrastructure.NewMemoryStore()
	channels := chat.NewMemoryRepository()

	p := &patient.Patient{
		ID:           types.NewID(),
		UnitID:       types.NewID(),
		Name:         "test patient",
		Age:          47,
		Gender:       "F",
		DiseaseCode:  "I61",
		SeverityCode: "1",
		Status:       patient.StatusSearching,
	}
	store.SeedPatient(p)

	requests := make([]*domain.Request, 0, n)
	for i := 0; i < n; i++ {
		requests = append(requests, domain.NewRequest(
			p.ID, p.UnitID, types.NewID(), 1-float64(i)*0.1, float64(i+1)))
	}
	if err := store.CreateFanOut(context.Background(), p.ID, requests); err != nil {
		t.Fatalf("CreateFanOut failed: %v", err)
	}

	provisioner := chat.NewProvisioner(channels, nil, logger)
	return &fixture{
		service:  NewService(store, provisioner, nil, logger),
		store:    store,
		channels: channels,
		patient:  p,
		requests: requests,
	}
}

func TestAcceptWinnerTakeAll(t *testing.T) {
	f := newFixture(t, 3)
	winner := f.requests[0]

	result, err := f.service.Accept(context.Background(), hospitalActor(winner.HospitalID), winner.ID)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if result.Request.Status != domain.StatusAccepted {
		t.Errorf("Expected accepted, got %s", result.Request.Status)
	}
	if len(result.Cancelled) != 2 {
		t.Fatalf("Expected 2 cancelled siblings, got %d", len(result.Cancelled))
	}
	for _, c := range result.Cancelled {
		if c.Status != domain.StatusCancelled {
			t.Errorf("Sibling %s not cancelled: %s", c.ID, c.Status)
		}
		if c.RejectionReason != domain.CancelReasonSuperseded {
			t.Errorf("Expected superseded reason, got %q", c.RejectionReason)
		}
	}

	if status, _ := f.store.PatientStatus(f.patient.ID); status != patient.StatusTransferred {
		t.Errorf("Expected patient transferred, got %s", status)
	}

	if result.Channel == nil {
		t.Fatal("Expected a chat channel")
	}
	if result.Channel.RequestID != winner.ID ||
		result.Channel.HospitalID != winner.HospitalID ||
		result.Channel.UnitID != f.patient.UnitID {
		t.Errorf("Channel bound to wrong parties: %+v", result.Channel)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	tests := []struct {
		name     string
		reason   string
		expected string
	}{
		{"explicit reason", "ICU full", "ICU full"},
		{"default reason", "", domain.DefaultRejectionReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			target := f.requests[0]

			req, err := f.service.Reject(context.Background(), hospitalActor(target.HospitalID), target.ID, tt.reason)
			if err != nil {
				t.Fatalf("Reject failed: %v", err)
			}

			if req.Status != domain.StatusRejected {
				t.Errorf("Expected rejected, got %s", req.Status)
			}
			if req.RejectionReason != tt.expected {
				t.Errorf("Expected reason %q, got %q", tt.expected, req.RejectionReason)
			}

			// Rejection is local: the sibling and the patient are untouched
			sibling, err := f.store.Get(context.Background(), f.requests[1].ID)
			if err != nil {
				t.Fatalf("Get sibling failed: %v", err)
			}
			if sibling.Status != domain.StatusPending {
				t.Errorf("Expected sibling still pending, got %s", sibling.Status)
			}
			if status, _ := f.store.PatientStatus(f.patient.ID); status != patient.StatusMatched {
				t.Errorf("Expected patient still matched, got %s", status)
			}
		})
	}
}

func TestAcceptAfterSiblingReject(t *testing.T) {
	f := newFixture(t, 2)

	if _, err := f.service.Reject(context.Background(), hospitalActor(f.requests[0].HospitalID), f.requests[0].ID, ""); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	result, err := f.service.Accept(context.Background(), hospitalActor(f.requests[1].HospitalID), f.requests[1].ID)
	if err != nil {
		t.Fatalf("Accept after sibling reject failed: %v", err)
	}
	if len(result.Cancelled) != 0 {
		t.Errorf("Rejected sibling must not be re-cancelled, got %d cancellations", len(result.Cancelled))
	}

	// The rejected request keeps its status and reason
	rejected, err := f.store.Get(context.Background(), f.requests[0].ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Errorf("Expected rejected sibling untouched, got %s", rejected.Status)
	}
}

func TestResolveTerminalRequestConflicts(t *testing.T) {
	f := newFixture(t, 3)

	if _, err := f.service.Accept(context.Background(), hospitalActor(f.requests[0].HospitalID), f.requests[0].ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	// The cancelled sibling can be neither accepted nor rejected
	if _, err := f.service.Accept(context.Background(), hospitalActor(f.requests[1].HospitalID), f.requests[1].ID); !errors.IsConflict(err) {
		t.Errorf("Expected conflict accepting cancelled sibling, got %v", err)
	}
	if _, err := f.service.Reject(context.Background(), hospitalActor(f.requests[2].HospitalID), f.requests[2].ID, "late"); !errors.IsConflict(err) {
		t.Errorf("Expected conflict rejecting cancelled sibling, got %v", err)
	}

	// The winner cannot be resolved twice
	if _, err := f.service.Accept(context.Background(), hospitalActor(f.requests[0].HospitalID), f.requests[0].ID); !errors.IsConflict(err) {
		t.Errorf("Expected conflict re-accepting winner, got %v", err)
	}
}

func TestResolveAuthorization(t *testing.T) {
	f := newFixture(t, 1)
	target := f.requests[0]

	tests := []struct {
		name  string
		actor *auth.Actor
	}{
		{"ems actor", &auth.Actor{ID: f.patient.UnitID, Type: auth.ActorTypeEMS}},
		{"other hospital", hospitalActor(types.NewID())},
		{"nil actor", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Accept(context.Background(), tt.actor, target.ID); err == nil {
				t.Error("Expected accept to be forbidden")
			}
			if _, err := f.service.Reject(context.Background(), tt.actor, target.ID, ""); err == nil {
				t.Error("Expected reject to be forbidden")
			}
		})
	}

	// The request is still pending for its rightful owner
	req, err := f.store.Get(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if req.Status != domain.StatusPending {
		t.Errorf("Expected request untouched, got %s", req.Status)
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	f := newFixture(t, 1)

	if _, err := f.service.Accept(context.Background(), hospitalActor(types.NewID()), types.NewID()); !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestConcurrentAcceptsSingleWinner(t *testing.T) {
	f := newFixture(t, 10)

	var wg sync.WaitGroup
	results := make([]*AcceptResult, len(f.requests))
	errs := make([]error, len(f.requests))

	for i, req := range f.requests {
		wg.Add(1)
		go func(i int, req *domain.Request) {
			defer wg.Done()
			results[i], errs[i] = f.service.Accept(
				context.Background(), hospitalActor(req.HospitalID), req.ID)
		}(i, req)
	}
	wg.Wait()

	winners := 0
	for i := range f.requests {
		if errs[i] == nil {
			winners++
			continue
		}
		if !errors.IsConflict(errs[i]) {
			t.Errorf("Loser %d got unexpected error: %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("Expected exactly one winner, got %d", winners)
	}

	if status, _ := f.store.PatientStatus(f.patient.ID); status != patient.StatusTransferred {
		t.Errorf("Expected patient transferred, got %s", status)
	}

	// Every losing sibling ended up cancelled, and exactly one channel exists
	accepted, cancelled := 0, 0
	for _, req := range f.requests {
		stored, err := f.store.Get(context.Background(), req.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		switch stored.Status {
		case domain.StatusAccepted:
			accepted++
		case domain.StatusCancelled:
			cancelled++
		default:
			t.Errorf("Request %s in unexpected state %s", req.ID, stored.Status)
		}
	}
	if accepted != 1 || cancelled != len(f.requests)-1 {
		t.Errorf("Expected 1 accepted and %d cancelled, got %d and %d",
			len(f.requests)-1, accepted, cancelled)
	}

	if _, err := f.channels.GetByPatient(context.Background(), f.patient.ID); err != nil {
		t.Errorf("Expected a chat channel for the winner: %v", err)
	}
}

func TestAcceptRaceLoserSeesConflict(t *testing.T) {
	f := newFixture(t, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range f.requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Accept(
				context.Background(), hospitalActor(f.requests[i].HospitalID), f.requests[i].ID)
		}(i)
	}
	wg.Wait()

	// Exactly one accept lands. The loser must surface a conflict the
	// hospital can act on, never an internal error.
	var loser error
	switch {
	case errs[0] == nil && errs[1] != nil:
		loser = errs[1]
	case errs[1] == nil && errs[0] != nil:
		loser = errs[0]
	default:
		t.Fatalf("Expected one winner and one loser, got %v / %v", errs[0], errs[1])
	}
	if !errors.IsConflict(loser) {
		t.Fatalf("Expected conflict for the losing accept, got %v", loser)
	}
}

func TestConcurrentAcceptAndReject(t *testing.T) {
	f := newFixture(t, 2)

	var wg sync.WaitGroup
	wg.Add(2)

	var acceptErr, rejectErr error
	go func() {
		defer wg.Done()
		_, acceptErr = f.service.Accept(
			context.Background(), hospitalActor(f.requests[0].HospitalID), f.requests[0].ID)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = f.service.Reject(
			context.Background(), hospitalActor(f.requests[1].HospitalID), f.requests[1].ID, "")
	}()
	wg.Wait()

	// The accept always wins its own request; the reject either resolved
	// its sibling first or lost to the cancellation
	if acceptErr != nil {
		t.Fatalf("Accept failed: %v", acceptErr)
	}
	if rejectErr != nil && !errors.IsConflict(rejectErr) {
		t.Errorf("Reject got unexpected error: %v", rejectErr)
	}

	sibling, err := f.store.Get(context.Background(), f.requests[1].ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sibling.Status != domain.StatusRejected && sibling.Status != domain.StatusCancelled {
		t.Errorf("Expected sibling rejected or cancelled, got %s", sibling.Status)
	}
}

func TestHospitalQueues(t *testing.T) {
	f := newFixture(t, 3)
	actor := hospitalActor(f.requests[0].HospitalID)

	pending, err := f.service.Pending(context.Background(), actor)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != f.requests[0].ID {
		t.Fatalf("Expected the hospital's own pending request, got %+v", pending)
	}

	if _, err := f.service.Accept(context.Background(), actor, f.requests[0].ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	pending, err = f.service.Pending(context.Background(), actor)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected empty queue after accept, got %d", len(pending))
	}

	resolved, err := f.service.Resolved(context.Background(), actor)
	if err != nil {
		t.Fatalf("Resolved failed: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Status != domain.StatusAccepted {
		t.Errorf("Expected one accepted request in history, got %+v", resolved)
	}
}
