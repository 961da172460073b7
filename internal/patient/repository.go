package patient

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Repository provides access to patient records
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id types.ID) (*Patient, error)
	ListByUnit(ctx context.Context, unitID types.ID) ([]Patient, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL patient repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create saves a new patient record
func (r *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	var vitals []byte
	if p.VitalSigns != nil {
		var err error
		vitals, err = json.Marshal(p.VitalSigns)
		if err != nil {
			return errors.Wrap(err, "failed to encode vital signs")
		}
	}

	query := `
		INSERT INTO transfers.patients (
			id, unit_id, name, age, gender, disease_code, severity_code,
			latitude, longitude, vital_signs, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UnitID, p.Name, p.Age, p.Gender, p.DiseaseCode, p.SeverityCode,
		p.Location.Latitude, p.Location.Longitude, vitals, p.Status,
		p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to save patient")
	}

	return nil
}

// Get finds a patient by ID
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	query := `
		SELECT id, unit_id, name, age, gender, disease_code, severity_code,
		       latitude, longitude, vital_signs, status, created_at, updated_at
		FROM transfers.patients
		WHERE id = $1`

	p, err := scanPatient(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find patient")
	}

	return p, nil
}

// ListByUnit returns patients registered by an EMS unit, newest first
func (r *PostgresRepository) ListByUnit(ctx context.Context, unitID types.ID) ([]Patient, error) {
	query := `
		SELECT id, unit_id, name, age, gender, disease_code, severity_code,
		       latitude, longitude, vital_signs, status, created_at, updated_at
		FROM transfers.patients
		WHERE unit_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, unitID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan patient")
		}
		patients = append(patients, *p)
	}

	return patients, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	p := &Patient{}
	var vitals []byte

	err := row.Scan(
		&p.ID, &p.UnitID, &p.Name, &p.Age, &p.Gender, &p.DiseaseCode,
		&p.SeverityCode, &p.Location.Latitude, &p.Location.Longitude,
		&vitals, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(vitals) > 0 {
		p.VitalSigns = &VitalSigns{}
		if err := json.Unmarshal(vitals, p.VitalSigns); err != nil {
			return nil, err
		}
	}

	return p, nil
}
