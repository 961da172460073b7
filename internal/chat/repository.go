package chat

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Repository persists chat channels
type Repository interface {
	// CreateIfAbsent inserts the channel unless one already exists for
	// its request. Returns the stored channel and whether this call
	// created it.
	CreateIfAbsent(ctx context.Context, ch *Channel) (*Channel, bool, error)

	// GetByRequest finds the channel for a transfer request
	GetByRequest(ctx context.Context, requestID types.ID) (*Channel, error)

	// GetByPatient finds the channel for a patient
	GetByPatient(ctx context.Context, patientID types.ID) (*Channel, error)
}

// PostgresRepository implements Repository using PostgreSQL. Idempotency
// rides on the unique constraint on request_id.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL chat repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateIfAbsent inserts the channel, or returns the existing one when a
// concurrent or earlier call already provisioned it
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, ch *Channel) (*Channel, bool, error) {
	query := `
		INSERT INTO transfers.chat_channels (
			id, request_id, patient_id, unit_id, hospital_id, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO NOTHING`

	result, err := r.pool.Exec(ctx, query,
		ch.ID, ch.RequestID, ch.PatientID, ch.UnitID, ch.HospitalID,
		ch.IsActive, ch.CreatedAt,
	)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to save chat channel")
	}

	if result.RowsAffected() == 1 {
		return ch, true, nil
	}

	existing, err := r.GetByRequest(ctx, ch.RequestID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByRequest finds the channel for a transfer request
func (r *PostgresRepository) GetByRequest(ctx context.Context, requestID types.ID) (*Channel, error) {
	return r.get(ctx, `WHERE request_id = $1`, requestID)
}

// GetByPatient finds the channel for a patient
func (r *PostgresRepository) GetByPatient(ctx context.Context, patientID types.ID) (*Channel, error) {
	return r.get(ctx, `WHERE patient_id = $1`, patientID)
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg any) (*Channel, error) {
	query := `
		SELECT id, request_id, patient_id, unit_id, hospital_id, is_active, created_at
		FROM transfers.chat_channels ` + where

	ch := &Channel{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ch.ID, &ch.RequestID, &ch.PatientID, &ch.UnitID, &ch.HospitalID,
		&ch.IsActive, &ch.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("chat channel", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find chat channel")
	}

	return ch, nil
}

// MemoryRepository implements Repository in memory for tests and local
// development
type MemoryRepository struct {
	mu        sync.Mutex
	byRequest map[types.ID]*Channel
}

// NewMemoryRepository creates an empty in-memory chat repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byRequest: make(map[types.ID]*Channel)}
}

// CreateIfAbsent inserts the channel unless one exists for its request
func (r *MemoryRepository) CreateIfAbsent(ctx context.Context, ch *Channel) (*Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byRequest[ch.RequestID]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *ch
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.byRequest[ch.RequestID] = &cp

	out := cp
	return &out, true, nil
}

// GetByRequest finds the channel for a transfer request
func (r *MemoryRepository) GetByRequest(ctx context.Context, requestID types.ID) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byRequest[requestID]
	if !ok {
		return nil, errors.NotFound("chat channel", "")
	}
	cp := *ch
	return &cp, nil
}

// GetByPatient finds the channel for a patient
func (r *MemoryRepository) GetByPatient(ctx context.Context, patientID types.ID) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.byRequest {
		if ch.PatientID == patientID {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, errors.NotFound("chat channel", "")
}
