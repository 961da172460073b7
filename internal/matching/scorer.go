package matching

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/metrics"
)

// Ranking sources as recorded in metrics and on the result
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceEmpty    = "empty"
)

// ScoredCandidate is a candidate hospital with its final ranking score
type ScoredCandidate struct {
	Candidate
	Score float64 `json:"score"`
}

// Ranking is a fully ordered candidate set with its provenance
type Ranking struct {
	Candidates []ScoredCandidate `json:"candidates"`
	Source     string            `json:"source"`
}

// Scorer orders candidate hospitals for a patient. The external ranking
// service is authoritative when it answers in time with a usable result;
// otherwise the scorer falls back to a distance ranking so registration
// never fails on the upstream's account.
type Scorer struct {
	ranker  Ranker
	timeout time.Duration
	enabled bool
	logger  *slog.Logger
}

// NewScorer creates a scorer backed by the given ranker
func NewScorer(ranker Ranker, cfg config.RankingConfig, logger *slog.Logger) *Scorer {
	return &Scorer{
		ranker:  ranker,
		timeout: cfg.Timeout,
		enabled: cfg.Enabled,
		logger:  logger,
	}
}

// Score ranks the candidate set. The returned candidates are ordered by
// descending score, ties broken by hospital ID.
func (s *Scorer) Score(ctx context.Context, p PatientInfo, candidates []Candidate) Ranking {
	if len(candidates) == 0 {
		metrics.RecordRanking(SourceEmpty)
		return Ranking{Source: SourceEmpty}
	}

	if s.enabled {
		if ranked, ok := s.scorePrimary(ctx, p, candidates); ok {
			metrics.RecordRanking(SourcePrimary)
			return Ranking{Candidates: ranked, Source: SourcePrimary}
		}
	}

	metrics.RecordRanking(SourceFallback)
	return Ranking{Candidates: scoreByDistance(candidates), Source: SourceFallback}
}

func (s *Scorer) scorePrimary(ctx context.Context, p PatientInfo, candidates []Candidate) ([]ScoredCandidate, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	matches, err := s.ranker.Rank(ctx, buildRankRequest(p, candidates))
	metrics.RecordRankingDuration(time.Since(start))

	if err != nil {
		s.logger.Warn("ranking service failed, falling back to distance ranking",
			"patient_id", p.ID, "error", err)
		return nil, false
	}

	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Hospital.ID.String()] = c
	}

	// Matches naming hospitals outside the candidate set are dropped.
	// A response that covers none of the candidates is as good as no
	// response.
	ranked := make([]ScoredCandidate, 0, len(matches))
	for _, m := range matches {
		c, ok := byID[m.HospitalID.String()]
		if !ok {
			s.logger.Warn("ranking service returned unknown hospital",
				"patient_id", p.ID, "hospital_id", m.HospitalID)
			continue
		}
		ranked = append(ranked, ScoredCandidate{Candidate: c, Score: m.Score})
		delete(byID, m.HospitalID.String())
	}

	if len(ranked) == 0 {
		s.logger.Warn("ranking service returned no usable matches",
			"patient_id", p.ID, "candidates", len(candidates))
		return nil, false
	}

	sortByScore(ranked)
	return ranked, true
}

// scoreByDistance assigns each candidate the synthetic score 1/(1+d) so
// closer hospitals rank higher and scores stay in (0, 1]
func scoreByDistance(candidates []Candidate) []ScoredCandidate {
	ranked := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, ScoredCandidate{
			Candidate: c,
			Score:     1 / (1 + c.DistanceKM),
		})
	}
	sortByScore(ranked)
	return ranked
}

func sortByScore(ranked []ScoredCandidate) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Hospital.ID < ranked[j].Hospital.ID
	})
}
