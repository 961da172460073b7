package domain

import (
	"context"

	"github.com/pulseroute/platform/internal/shared/types"
)

// AcceptOutcome describes the effects of a successful accept: the winning
// request and the still-pending siblings that were cancelled with it.
type AcceptOutcome struct {
	Winner    *Request
	Cancelled []Request
}

// Store persists transfer requests and owns every multi-row transition.
// The fan-out and both resolutions are atomic: concurrent callers observe
// either none or all of a transition's effects.
type Store interface {
	// CreateFanOut inserts the given pending requests and moves the
	// patient from searching to matched in the same transaction. An
	// empty slice leaves the patient searching. Fails without partial
	// effects if the patient is missing or past the searching state.
	CreateFanOut(ctx context.Context, patientID types.ID, requests []*Request) error

	// Get finds a request by ID
	Get(ctx context.Context, id types.ID) (*Request, error)

	// ListByPatient returns all requests for a patient, ordered by
	// descending rank score then request ID
	ListByPatient(ctx context.Context, patientID types.ID) ([]Request, error)

	// ListPendingByHospital returns a hospital's open work queue,
	// oldest first
	ListPendingByHospital(ctx context.Context, hospitalID types.ID) ([]Request, error)

	// ListResolvedByHospital returns a hospital's terminal requests,
	// newest first
	ListResolvedByHospital(ctx context.Context, hospitalID types.ID) ([]Request, error)

	// ResolveAccept atomically accepts a pending request, cancels its
	// still-pending siblings and moves the patient to transferred.
	// Returns a conflict error when the request is no longer pending or
	// the patient is already bound elsewhere.
	ResolveAccept(ctx context.Context, requestID types.ID) (*AcceptOutcome, error)

	// ResolveReject atomically rejects a pending request, recording the
	// reason. Other siblings and the patient are untouched.
	ResolveReject(ctx context.Context, requestID types.ID, reason string) (*Request, error)
}
