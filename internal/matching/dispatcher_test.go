package matching_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pulseroute/platform/internal/hospital"
	"github.com/pulseroute/platform/internal/matching"
	"github.com/pulseroute/platform/internal/patient"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/infrastructure"
)

func dispatchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedSearchingPatient stores a patient and returns it with the matching
// pipeline's view of it
func seedSearchingPatient(store *infrastructure.MemoryStore) (*patient.Patient, matching.PatientInfo) {
	p := &patient.Patient{
		ID:           types.NewID(),
		UnitID:       types.NewID(),
		Name:         "test patient",
		Age:          52,
		Gender:       "M",
		DiseaseCode:  "I21",
		SeverityCode: "2",
		Location:     types.Location{Latitude: 37.5665, Longitude: 126.9780},
		Status:       patient.StatusSearching,
	}
	store.SeedPatient(p)
	info := matching.PatientInfo{
		ID:           p.ID,
		UnitID:       p.UnitID,
		Location:     p.Location,
		DiseaseCode:  p.DiseaseCode,
		SeverityCode: p.SeverityCode,
	}
	return p, info
}

func rankedCandidates(n int) matching.Ranking {
	ranked := make([]matching.ScoredCandidate, 0, n)
	for i := 0; i < n; i++ {
		ranked = append(ranked, matching.ScoredCandidate{
			Candidate: matching.Candidate{
				Hospital: hospital.Hospital{
					ID:       types.NewID(),
					Name:     "h",
					Location: types.Location{Latitude: 37.57 + float64(i)*0.01, Longitude: 126.98},
				},
				DistanceKM: float64(i + 1),
			},
			Score: 1 - float64(i)*0.1,
		})
	}
	return matching.Ranking{Candidates: ranked, Source: matching.SourceFallback}
}

func TestDispatchCreatesRequests(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	p, info := seedSearchingPatient(store)

	dispatcher := matching.NewDispatcher(store, 10, dispatchLogger())

	requests, err := dispatcher.Dispatch(context.Background(), info, rankedCandidates(3))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(requests))
	}

	for i, req := range requests {
		if req.PatientID != p.ID {
			t.Errorf("Request %d bound to wrong patient", i)
		}
		if req.UnitID != p.UnitID {
			t.Errorf("Request %d bound to wrong unit", i)
		}
	}

	// Best ranked candidate first
	if requests[0].RankScore < requests[1].RankScore {
		t.Error("Expected requests in descending score order")
	}

	if status, _ := store.PatientStatus(p.ID); status != patient.StatusMatched {
		t.Errorf("Expected patient matched after fan-out, got %s", status)
	}

	stored, err := store.ListByPatient(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByPatient failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("Expected 3 stored requests, got %d", len(stored))
	}
}

func TestDispatchTruncatesToWidth(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	_, info := seedSearchingPatient(store)

	dispatcher := matching.NewDispatcher(store, 2, dispatchLogger())

	ranking := rankedCandidates(5)
	requests, err := dispatcher.Dispatch(context.Background(), info, ranking)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("Expected fan-out capped at 2, got %d", len(requests))
	}

	// The cap keeps the best ranked candidates
	if requests[0].HospitalID != ranking.Candidates[0].Hospital.ID ||
		requests[1].HospitalID != ranking.Candidates[1].Hospital.ID {
		t.Error("Expected the top ranked candidates to survive truncation")
	}
}

func TestDispatchEmptyRankingIsNoOp(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	p, info := seedSearchingPatient(store)

	dispatcher := matching.NewDispatcher(store, 10, dispatchLogger())

	requests, err := dispatcher.Dispatch(context.Background(), info, matching.Ranking{Source: matching.SourceEmpty})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("Expected no requests, got %d", len(requests))
	}

	if status, _ := store.PatientStatus(p.ID); status != patient.StatusSearching {
		t.Errorf("Expected patient still searching, got %s", status)
	}
}

func TestDispatchAllOrNothing(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	p := &patient.Patient{
		ID:     types.NewID(),
		UnitID: types.NewID(),
		Status: patient.StatusTransferred, // already bound, fan-out must fail
	}
	store.SeedPatient(p)
	info := matching.PatientInfo{ID: p.ID, UnitID: p.UnitID}

	dispatcher := matching.NewDispatcher(store, 10, dispatchLogger())

	_, err := dispatcher.Dispatch(context.Background(), info, rankedCandidates(3))
	if !errors.IsConflict(err) {
		t.Fatalf("Expected conflict, got %v", err)
	}

	stored, listErr := store.ListByPatient(context.Background(), p.ID)
	if listErr != nil {
		t.Fatalf("ListByPatient failed: %v", listErr)
	}
	if len(stored) != 0 {
		t.Errorf("Expected no requests after failed fan-out, got %d", len(stored))
	}
}

func TestDispatchUnknownPatient(t *testing.T) {
	store := infrastructure.NewMemoryStore()
	dispatcher := matching.NewDispatcher(store, 10, dispatchLogger())

	info := matching.PatientInfo{ID: types.NewID(), UnitID: types.NewID()}
	_, err := dispatcher.Dispatch(context.Background(), info, rankedCandidates(1))
	if !errors.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}
