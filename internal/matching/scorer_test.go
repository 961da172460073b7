package matching

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPatient() PatientInfo {
	return PatientInfo{
		ID:           types.NewID(),
		UnitID:       types.NewID(),
		DiseaseCode:  "I21",
		SeverityCode: "2",
		Location:     seoul,
	}
}

func testCandidates(n int) []Candidate {
	candidates := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, Candidate{
			Hospital:   hospitalAt("h", 37.57+float64(i)*0.01, 126.98),
			DistanceKM: float64(i + 1),
		})
	}
	return candidates
}

func newTestScorer(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Scorer {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.RankingConfig{URL: server.URL, Timeout: timeout, Enabled: true}
	return NewScorer(NewHTTPRanker(cfg), cfg, testLogger())
}

func TestScorePrimaryOrdering(t *testing.T) {
	candidates := testCandidates(3)

	// The service ranks the furthest hospital highest; its answer wins
	// over distance
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		var req RankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode ranking request: %v", err)
		}
		if len(req.Hospitals) != 3 {
			t.Errorf("Expected 3 hospitals in request, got %d", len(req.Hospitals))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"matches": []RankMatch{
				{HospitalID: candidates[2].Hospital.ID, Score: 0.9},
				{HospitalID: candidates[0].Hospital.ID, Score: 0.5},
				{HospitalID: candidates[1].Hospital.ID, Score: 0.7},
			},
		})
	}, 5*time.Second)

	ranking := scorer.Score(context.Background(), testPatient(), candidates)

	if ranking.Source != SourcePrimary {
		t.Fatalf("Expected primary ranking, got %s", ranking.Source)
	}
	if len(ranking.Candidates) != 3 {
		t.Fatalf("Expected 3 ranked candidates, got %d", len(ranking.Candidates))
	}
	if ranking.Candidates[0].Hospital.ID != candidates[2].Hospital.ID {
		t.Error("Expected the highest scored hospital first")
	}
	if ranking.Candidates[0].Score != 0.9 || ranking.Candidates[2].Score != 0.5 {
		t.Errorf("Scores not carried through: %+v", ranking.Candidates)
	}
}

func TestScoreFallbackOnTimeout(t *testing.T) {
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"matches": []RankMatch{}})
	}, 20*time.Millisecond)

	candidates := testCandidates(2)
	ranking := scorer.Score(context.Background(), testPatient(), candidates)

	if ranking.Source != SourceFallback {
		t.Fatalf("Expected fallback ranking after timeout, got %s", ranking.Source)
	}
	if len(ranking.Candidates) != 2 {
		t.Fatalf("Expected every candidate ranked, got %d", len(ranking.Candidates))
	}
	// Fallback ranks by distance: 1 km before 2 km
	if ranking.Candidates[0].DistanceKM != 1 {
		t.Error("Expected the closest hospital first in fallback ranking")
	}
	if got, want := ranking.Candidates[0].Score, 1.0/2.0; got != want {
		t.Errorf("Expected synthetic score %v, got %v", want, got)
	}
}

func TestScoreFallbackOnServerError(t *testing.T) {
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, 5*time.Second)

	ranking := scorer.Score(context.Background(), testPatient(), testCandidates(2))

	if ranking.Source != SourceFallback {
		t.Errorf("Expected fallback on upstream error, got %s", ranking.Source)
	}
}

func TestScoreFallbackOnMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `ranked!`},
		{"empty matches", `{"matches": []}`},
		{"only unknown hospitals", `{"matches": [{"hospital_id": "b1b2a4a0-0000-0000-0000-000000000000", "score": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}, 5*time.Second)

			ranking := scorer.Score(context.Background(), testPatient(), testCandidates(2))

			if ranking.Source != SourceFallback {
				t.Errorf("Expected fallback, got %s", ranking.Source)
			}
			if len(ranking.Candidates) != 2 {
				t.Errorf("Expected 2 fallback candidates, got %d", len(ranking.Candidates))
			}
		})
	}
}

func TestScoreDropsUnknownHospitals(t *testing.T) {
	candidates := testCandidates(2)

	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"matches": []RankMatch{
				{HospitalID: candidates[1].Hospital.ID, Score: 0.8},
				{HospitalID: types.NewID(), Score: 0.99},
			},
		})
	}, 5*time.Second)

	ranking := scorer.Score(context.Background(), testPatient(), candidates)

	if ranking.Source != SourcePrimary {
		t.Fatalf("Expected primary ranking, got %s", ranking.Source)
	}
	if len(ranking.Candidates) != 1 {
		t.Fatalf("Expected unknown hospital dropped, got %d candidates", len(ranking.Candidates))
	}
	if ranking.Candidates[0].Hospital.ID != candidates[1].Hospital.ID {
		t.Error("Expected the known hospital to survive")
	}
}

func TestScoreEmptyCandidates(t *testing.T) {
	scorer := newTestScorer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("Ranking service must not be called with no candidates")
	}, 5*time.Second)

	ranking := scorer.Score(context.Background(), testPatient(), nil)

	if ranking.Source != SourceEmpty {
		t.Errorf("Expected empty ranking, got %s", ranking.Source)
	}
	if len(ranking.Candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(ranking.Candidates))
	}
}

func TestScoreDisabledUsesFallback(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := config.RankingConfig{URL: server.URL, Timeout: time.Second, Enabled: false}
	scorer := NewScorer(NewHTTPRanker(cfg), cfg, testLogger())

	ranking := scorer.Score(context.Background(), testPatient(), testCandidates(1))

	if called {
		t.Error("Disabled scorer must not call the ranking service")
	}
	if ranking.Source != SourceFallback {
		t.Errorf("Expected fallback ranking, got %s", ranking.Source)
	}
}
