package hospital

import (
	"fmt"
	"time"

	"github.com/pulseroute/platform/internal/shared/types"
)

// Hospital is a receiving facility in the transfer network. Read-only from
// the matching core's perspective; capacity and specialty feed the scorer.
type Hospital struct {
	ID            types.ID       `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Location      types.Location `json:"location"`
	Specialty     []string       `json:"specialty"`
	AvailableBeds int            `json:"available_beds"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewHospital creates a hospital record with validation
func NewHospital(name, email string, loc types.Location, specialty []string, beds int) (*Hospital, error) {
	if name == "" {
		return nil, fmt.Errorf("hospital name is required")
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if beds < 0 {
		return nil, fmt.Errorf("available beds cannot be negative")
	}
	if specialty == nil {
		specialty = []string{}
	}

	return &Hospital{
		ID:            types.NewID(),
		Name:          name,
		Email:         email,
		Location:      loc,
		Specialty:     specialty,
		AvailableBeds: beds,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
