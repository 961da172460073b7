package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// HistoryFilter narrows a transfer history query
type HistoryFilter struct {
	Days     int    // look-back window, 0 means the default
	Severity string // exact severity code, empty means all
	Limit    int
	Offset   int
}

const (
	defaultHistoryDays  = 30
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryItem is one completed transfer as seen by the querying actor
type HistoryItem struct {
	RequestID            types.ID  `json:"request_id"`
	PatientID            types.ID  `json:"patient_id"`
	PatientName          string    `json:"patient_name"`
	SeverityCode         string    `json:"severity_code"`
	HospitalID           types.ID  `json:"hospital_id"`
	DistanceKM           float64   `json:"distance_km"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	AcceptedAt           time.Time `json:"accepted_at"`
}

// History returns the actor's completed transfers, newest first. Hospitals
// see transfers they accepted; EMS units see transfers of patients they
// registered.
func (p *Projector) History(ctx context.Context, actor *auth.Actor, filter HistoryFilter) ([]HistoryItem, int, error) {
	if actor == nil {
		return nil, 0, errors.Unauthorized("authentication required")
	}

	accepted, err := p.acceptedForActor(ctx, actor)
	if err != nil {
		return nil, 0, err
	}

	if filter.Days <= 0 {
		filter.Days = defaultHistoryDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -filter.Days)

	var items []HistoryItem
	for _, req := range accepted {
		if req.UpdatedAt.Before(cutoff) {
			continue
		}

		pat, err := p.patients.Get(ctx, req.PatientID)
		if err != nil {
			return nil, 0, err
		}
		if filter.Severity != "" && pat.SeverityCode != filter.Severity {
			continue
		}

		items = append(items, HistoryItem{
			RequestID:            req.ID,
			PatientID:            req.PatientID,
			PatientName:          pat.Name,
			SeverityCode:         pat.SeverityCode,
			HospitalID:           req.HospitalID,
			DistanceKM:           req.DistanceKM,
			EstimatedTimeMinutes: req.EstimatedTimeMinutes,
			AcceptedAt:           req.UpdatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].AcceptedAt.Equal(items[j].AcceptedAt) {
			return items[i].AcceptedAt.After(items[j].AcceptedAt)
		}
		return items[i].RequestID < items[j].RequestID
	})

	total := len(items)
	return paginate(items, filter.Limit, filter.Offset), total, nil
}

// acceptedForActor collects accepted requests visible to the actor
func (p *Projector) acceptedForActor(ctx context.Context, actor *auth.Actor) ([]domain.Request, error) {
	if actor.IsHospital() {
		resolved, err := p.store.ListResolvedByHospital(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		var accepted []domain.Request
		for _, req := range resolved {
			if req.Status == domain.StatusAccepted {
				accepted = append(accepted, req)
			}
		}
		return accepted, nil
	}

	patients, err := p.patients.ListByUnit(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	var accepted []domain.Request
	for _, pat := range patients {
		requests, err := p.store.ListByPatient(ctx, pat.ID)
		if err != nil {
			return nil, err
		}
		for _, req := range requests {
			if req.Status == domain.StatusAccepted {
				accepted = append(accepted, req)
			}
		}
	}
	return accepted, nil
}

func paginate(items []HistoryItem, limit, offset int) []HistoryItem {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
