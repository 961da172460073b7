package hospital

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
	mu        sync.Mutex
	hospitals map[types.ID]*Hospital
}

// NewMemoryRepository creates an empty in-memory hospital repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{hospitals: make(map[types.ID]*Hospital)}
}

// Create saves a new hospital
func (r *MemoryRepository) Create(ctx context.Context, h *Hospital) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hospitals {
		if existing.Email == h.Email {
			return errors.Conflict("hospital with this email already exists")
		}
	}

	cp := *h
	r.hospitals[h.ID] = &cp
	return nil
}

// Get finds a hospital by ID
func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hospitals[id]
	if !ok {
		return nil, errors.NotFound("hospital", id.String())
	}
	cp := *h
	return &cp, nil
}

// List returns all hospitals ordered by ID
func (r *MemoryRepository) List(ctx context.Context) ([]Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Hospital
	for _, h := range r.hospitals {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
