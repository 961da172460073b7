package chat

import (
	"time"

	"github.com/pulseroute/platform/internal/shared/types"
)

// Channel is a 1:1 communication channel between the EMS unit carrying a
// patient and the hospital that accepted them. Exactly one channel exists
// per accepted transfer request.
type Channel struct {
	ID         types.ID  `json:"id"`
	RequestID  types.ID  `json:"request_id"`
	PatientID  types.ID  `json:"patient_id"`
	UnitID     types.ID  `json:"unit_id"`
	HospitalID types.ID  `json:"hospital_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
