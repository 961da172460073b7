package patient

import (
	"context"
	"sort"
	"sync"

	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// MemoryRepository implements Repository in memory for tests and local
// development
type MemoryRepository struct {
	mu       sync.Mutex
	patients map[types.ID]*Patient
}

// NewMemoryRepository creates an empty in-memory patient repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{patients: make(map[types.ID]*Patient)}
}

// Create saves a new patient record
func (r *MemoryRepository) Create(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

// Get finds a patient by ID
func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

// ListByUnit returns patients registered by an EMS unit, newest first
func (r *MemoryRepository) ListByUnit(ctx context.Context, unitID types.ID) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Patient
	for _, p := range r.patients {
		if p.UnitID == unitID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetStatus updates a stored patient's status. Used when the transfer
// store and this repository back the same test fixture.
func (r *MemoryRepository) SetStatus(id types.ID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.patients[id]; ok {
		p.Status = status
	}
}
