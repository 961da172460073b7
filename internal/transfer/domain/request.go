package domain

import (
	"math"
	"time"

	"github.com/pulseroute/platform/internal/shared/types"
)

// Status defines the lifecycle state of a transfer request
type Status string

const (
	// StatusPending means the hospital has not yet responded
	StatusPending Status = "pending"
	// StatusAccepted means the hospital accepted and won the patient
	StatusAccepted Status = "accepted"
	// StatusRejected means the hospital declined
	StatusRejected Status = "rejected"
	// StatusCancelled means a sibling request was accepted first
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

const (
	// DefaultRejectionReason is recorded when a hospital rejects without
	// giving one
	DefaultRejectionReason = "no beds available"
	// CancelReasonSuperseded is recorded on siblings cancelled because
	// another hospital accepted
	CancelReasonSuperseded = "superseded"
)

// Request is a single offer of a patient to a hospital. Requests for the
// same patient created in one fan-out are siblings; at most one of them
// ever reaches the accepted state.
type Request struct {
	ID                   types.ID  `json:"id"`
	PatientID            types.ID  `json:"patient_id"`
	UnitID               types.ID  `json:"unit_id"`
	HospitalID           types.ID  `json:"hospital_id"`
	Status               Status    `json:"status"`
	RankScore            float64   `json:"rank_score"`
	DistanceKM           float64   `json:"distance_km"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	RejectionReason      string    `json:"rejection_reason,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewRequest creates a pending request for one candidate hospital.
// Travel time is estimated at two minutes per kilometer of great-circle
// distance, rounded up.
func NewRequest(patientID, unitID, hospitalID types.ID, score, distanceKM float64) *Request {
	now := time.Now().UTC()
	return &Request{
		ID:                   types.NewID(),
		PatientID:            patientID,
		UnitID:               unitID,
		HospitalID:           hospitalID,
		Status:               StatusPending,
		RankScore:            score,
		DistanceKM:           distanceKM,
		EstimatedTimeMinutes: int(math.Ceil(distanceKM * 2)),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
