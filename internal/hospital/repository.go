package hospital

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Repository provides access to the hospital directory
type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, id types.ID) (*Hospital, error)
	List(ctx context.Context) ([]Hospital, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL hospital repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create saves a new hospital
func (r *PostgresRepository) Create(ctx context.Context, h *Hospital) error {
	query := `
		INSERT INTO transfers.hospitals (
			id, name, email, latitude, longitude, specialty, available_beds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		h.ID, h.Name, h.Email, h.Location.Latitude, h.Location.Longitude,
		h.Specialty, h.AvailableBeds, h.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return errors.Conflict("hospital with this email already exists")
		}
		return errors.Wrap(err, "failed to save hospital")
	}

	return nil
}

// Get finds a hospital by ID
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	query := `
		SELECT id, name, email, latitude, longitude, specialty, available_beds, created_at
		FROM transfers.hospitals
		WHERE id = $1`

	h := &Hospital{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&h.ID, &h.Name, &h.Email, &h.Location.Latitude, &h.Location.Longitude,
		&h.Specialty, &h.AvailableBeds, &h.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("hospital", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find hospital")
	}

	return h, nil
}

// List returns all hospitals ordered by ID for deterministic output
func (r *PostgresRepository) List(ctx context.Context) ([]Hospital, error) {
	query := `
		SELECT id, name, email, latitude, longitude, specialty, available_beds, created_at
		FROM transfers.hospitals
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list hospitals")
	}
	defer rows.Close()

	var hospitals []Hospital
	for rows.Next() {
		var h Hospital
		err := rows.Scan(
			&h.ID, &h.Name, &h.Email, &h.Location.Latitude, &h.Location.Longitude,
			&h.Specialty, &h.AvailableBeds, &h.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan hospital")
		}
		hospitals = append(hospitals, h)
	}

	return hospitals, nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
