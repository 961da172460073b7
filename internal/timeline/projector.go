package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/pulseroute/platform/internal/chat"
	"github.com/pulseroute/platform/internal/patient"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// Entry types in causal order within a patient's lifecycle
const (
	EntryPatientRegistered = "patient.registered"
	EntryRequestCreated    = "request.created"
	EntryRequestAccepted   = "request.accepted"
	EntryRequestRejected   = "request.rejected"
	EntryRequestCancelled  = "request.cancelled"
	EntryChatCreated       = "chat.created"
)

// Entry is one step in a patient's transfer lifecycle
type Entry struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  types.ID  `json:"request_id,omitempty"`
	HospitalID types.ID  `json:"hospital_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Timeline is the ordered lifecycle of one patient
type Timeline struct {
	PatientID types.ID `json:"patient_id"`
	Status    string   `json:"status"`
	Entries   []Entry  `json:"entries"`
}

// Projector assembles a patient's lifecycle from stored state. It is a
// read-only view; nothing here mutates patients or requests.
type Projector struct {
	patients patient.Repository
	store    domain.Store
	channels chat.Repository
}

// NewProjector creates a timeline projector
func NewProjector(patients patient.Repository, store domain.Store, channels chat.Repository) *Projector {
	return &Projector{patients: patients, store: store, channels: channels}
}

// Project builds the timeline for a patient. Entries are ordered by
// timestamp; equal timestamps fall back to causal order (registration
// before fan-out, fan-out before resolutions, resolutions before chat)
// and then request ID, so the projection is stable across calls.
func (p *Projector) Project(ctx context.Context, patientID types.ID) (*Timeline, error) {
	pat, err := p.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	requests, err := p.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	entries := []Entry{{
		Type:      EntryPatientRegistered,
		Timestamp: pat.CreatedAt,
		Detail:    "severity " + pat.SeverityCode,
	}}

	for _, req := range requests {
		entries = append(entries, Entry{
			Type:       EntryRequestCreated,
			Timestamp:  req.CreatedAt,
			RequestID:  req.ID,
			HospitalID: req.HospitalID,
		})

		if req.Status == domain.StatusPending {
			continue
		}
		entries = append(entries, Entry{
			Type:       transitionEntryType(req.Status),
			Timestamp:  req.UpdatedAt,
			RequestID:  req.ID,
			HospitalID: req.HospitalID,
			Detail:     req.RejectionReason,
		})
	}

	channel, err := p.channels.GetByPatient(ctx, patientID)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		entries = append(entries, Entry{
			Type:       EntryChatCreated,
			Timestamp:  channel.CreatedAt,
			RequestID:  channel.RequestID,
			HospitalID: channel.HospitalID,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		if causalRank(entries[i].Type) != causalRank(entries[j].Type) {
			return causalRank(entries[i].Type) < causalRank(entries[j].Type)
		}
		return entries[i].RequestID < entries[j].RequestID
	})

	return &Timeline{
		PatientID: pat.ID,
		Status:    string(pat.Status),
		Entries:   entries,
	}, nil
}

func transitionEntryType(status domain.Status) string {
	switch status {
	case domain.StatusAccepted:
		return EntryRequestAccepted
	case domain.StatusRejected:
		return EntryRequestRejected
	default:
		return EntryRequestCancelled
	}
}

func causalRank(entryType string) int {
	switch entryType {
	case EntryPatientRegistered:
		return 0
	case EntryRequestCreated:
		return 1
	case EntryRequestAccepted, EntryRequestRejected, EntryRequestCancelled:
		return 2
	default:
		return 3
	}
}
