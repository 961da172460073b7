package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// PostgresStore implements domain.Store on PostgreSQL. Row-level locking
// and conditional updates make every transition a single serialization
// point; there are no in-process locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL transfer store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CreateFanOut inserts the pending requests and marks the patient matched
// in one transaction
func (s *PostgresStore) CreateFanOut(ctx context.Context, patientID types.ID, requests []*domain.Request) error {
	if len(requests) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE transfers.patients
		SET status = 'matched', updated_at = NOW()
		WHERE id = $1 AND status = 'searching'`,
		patientID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update patient status")
	}
	if result.RowsAffected() == 0 {
		return errors.Conflict("patient is not in the searching state")
	}

	for _, req := range requests {
		_, err := tx.Exec(ctx, `
			INSERT INTO transfers.transfer_requests (
				id, patient_id, unit_id, hospital_id, status,
				rank_score, distance_km, estimated_time_minutes,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			req.ID, req.PatientID, req.UnitID, req.HospitalID, req.Status,
			req.RankScore, req.DistanceKM, req.EstimatedTimeMinutes,
			req.CreatedAt, req.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert transfer request")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit fan-out")
	}

	return nil
}

// Get finds a request by ID
func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*domain.Request, error) {
	req, err := scanRequest(s.pool.QueryRow(ctx, selectRequest+` WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("transfer request", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find transfer request")
	}
	return req, nil
}

// ListByPatient returns all requests for a patient, best ranked first
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID types.ID) ([]domain.Request, error) {
	return s.list(ctx, selectRequest+`
		WHERE patient_id = $1
		ORDER BY rank_score DESC, id`, patientID)
}

// ListPendingByHospital returns a hospital's open work queue, oldest first
func (s *PostgresStore) ListPendingByHospital(ctx context.Context, hospitalID types.ID) ([]domain.Request, error) {
	return s.list(ctx, selectRequest+`
		WHERE hospital_id = $1 AND status = 'pending'
		ORDER BY created_at, id`, hospitalID)
}

// ListResolvedByHospital returns a hospital's terminal requests, newest first
func (s *PostgresStore) ListResolvedByHospital(ctx context.Context, hospitalID types.ID) ([]domain.Request, error) {
	return s.list(ctx, selectRequest+`
		WHERE hospital_id = $1 AND status <> 'pending'
		ORDER BY updated_at DESC, id`, hospitalID)
}

// ResolveAccept performs the winner-take-all transition. The patient row
// is locked first, so concurrent accepts for the same patient serialize
// there before any of them touches a request row; the losers then fail
// the patient CAS instead of deadlocking across each other's requests.
func (s *PostgresStore) ResolveAccept(ctx context.Context, requestID types.ID) (*domain.AcceptOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	pending, err := scanRequest(tx.QueryRow(ctx, selectRequest+` WHERE id = $1`, requestID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("transfer request", requestID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find transfer request")
	}

	result, err := tx.Exec(ctx, `
		UPDATE transfers.patients
		SET status = 'transferred', updated_at = NOW()
		WHERE id = $1 AND status IN ('searching', 'matched')`,
		pending.PatientID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update patient status")
	}
	if result.RowsAffected() == 0 {
		return nil, s.resolveConflict(ctx, requestID)
	}

	winner, err := scanRequest(tx.QueryRow(ctx, `
		UPDATE transfers.transfer_requests
		SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, requestID))
	if err == pgx.ErrNoRows {
		return nil, s.resolveConflict(ctx, requestID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept transfer request")
	}

	rows, err := tx.Query(ctx, `
		UPDATE transfers.transfer_requests
		SET status = 'cancelled', rejection_reason = $3, updated_at = NOW()
		WHERE patient_id = $1 AND id <> $2 AND status = 'pending'
		RETURNING `+requestColumns,
		winner.PatientID, winner.ID, domain.CancelReasonSuperseded,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to cancel sibling requests")
	}

	cancelled, err := collectRequests(rows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan cancelled siblings")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit accept")
	}

	return &domain.AcceptOutcome{Winner: winner, Cancelled: cancelled}, nil
}

// resolveConflict distinguishes a missing request from one already
// resolved. A request still pending after a lost patient CAS means a
// sibling won; its own cancellation commits with the winner.
func (s *PostgresStore) resolveConflict(ctx context.Context, requestID types.ID) error {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status == domain.StatusPending {
		return errors.Conflict("patient is already transferred")
	}
	return errors.Conflict("transfer request is already " + string(req.Status))
}

// ResolveReject marks a pending request rejected with the given reason
func (s *PostgresStore) ResolveReject(ctx context.Context, requestID types.ID, reason string) (*domain.Request, error) {
	req, err := scanRequest(s.pool.QueryRow(ctx, `
		UPDATE transfers.transfer_requests
		SET status = 'rejected', rejection_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns, requestID, reason))
	if err == pgx.ErrNoRows {
		return nil, s.resolveConflict(ctx, requestID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to reject transfer request")
	}
	return req, nil
}

const requestColumns = `id, patient_id, unit_id, hospital_id, status,
	rank_score, distance_km, estimated_time_minutes, rejection_reason,
	created_at, updated_at`

const selectRequest = `SELECT ` + requestColumns + ` FROM transfers.transfer_requests`

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]domain.Request, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transfer requests")
	}
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]domain.Request, error) {
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	req := &domain.Request{}
	var reason sql.NullString
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&req.ID, &req.PatientID, &req.UnitID, &req.HospitalID, &req.Status,
		&req.RankScore, &req.DistanceKM, &req.EstimatedTimeMinutes,
		&reason, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.RejectionReason = reason.String
	req.CreatedAt = createdAt
	req.UpdatedAt = updatedAt
	return req, nil
}
