package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pulseroute/platform/internal/shared/config"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// RankRequest is the payload sent to the external ranking service
type RankRequest struct {
	PatientID    types.ID       `json:"patient_id"`
	Location     types.Location `json:"location"`
	DiseaseCode  string         `json:"disease_code"`
	SeverityCode string         `json:"severity_code"`
	Hospitals    []RankHospital `json:"hospitals"`
}

// RankHospital is one candidate as presented to the ranking service
type RankHospital struct {
	ID            types.ID       `json:"id"`
	Location      types.Location `json:"location"`
	Specialty     []string       `json:"specialty"`
	AvailableBeds int            `json:"available_beds"`
	DistanceKM    float64        `json:"distance_km"`
}

// RankMatch is one ranked hospital returned by the ranking service
type RankMatch struct {
	HospitalID types.ID `json:"hospital_id"`
	Score      float64  `json:"score"`
}

// Ranker ranks candidate hospitals for a patient
type Ranker interface {
	Rank(ctx context.Context, req RankRequest) ([]RankMatch, error)
}

// HTTPRanker calls the external ranking service over HTTP. The call
// deadline comes from the caller's context; the service is treated as an
// untrusted upstream and every failure mode maps to an upstream error.
type HTTPRanker struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRanker creates a ranking service client
func NewHTTPRanker(cfg config.RankingConfig) *HTTPRanker {
	return &HTTPRanker{
		url:        cfg.URL,
		httpClient: &http.Client{},
	}
}

// Rank submits the candidate set and returns the service's ranking
func (c *HTTPRanker) Rank(ctx context.Context, rankReq RankRequest) ([]RankMatch, error) {
	body, err := json.Marshal(rankReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal ranking request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ranking request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.UpstreamTimeout("ranking service")
		}
		return nil, errors.UpstreamFailure("ranking service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.UpstreamFailure("ranking service",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var result struct {
		Matches []RankMatch `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.UpstreamFailure("ranking service", err)
	}

	return result.Matches, nil
}

// buildRankRequest assembles the ranking payload for a patient and its
// candidate set
func buildRankRequest(p PatientInfo, candidates []Candidate) RankRequest {
	req := RankRequest{
		PatientID:    p.ID,
		Location:     p.Location,
		DiseaseCode:  p.DiseaseCode,
		SeverityCode: p.SeverityCode,
		Hospitals:    make([]RankHospital, 0, len(candidates)),
	}

	for _, c := range candidates {
		req.Hospitals = append(req.Hospitals, RankHospital{
			ID:            c.Hospital.ID,
			Location:      c.Hospital.Location,
			Specialty:     c.Hospital.Specialty,
			AvailableBeds: c.Hospital.AvailableBeds,
			DistanceKM:    c.DistanceKM,
		})
	}

	return req
}
