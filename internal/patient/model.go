package patient

import (
	"time"

	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/types"
)

// Status tracks a patient through the transfer lifecycle
type Status string

const (
	// StatusSearching means the patient is registered and candidate
	// hospitals are being contacted
	StatusSearching Status = "searching"
	// StatusMatched means transfer requests are pending at one or more
	// hospitals
	StatusMatched Status = "matched"
	// StatusTransferred means a hospital accepted and the patient is
	// bound to it
	StatusTransferred Status = "transferred"
)

// Valid severity codes, most to least urgent (KTAS triage levels)
var validSeverityCodes = map[string]bool{
	"1": true, "2": true, "3": true, "4": true, "5": true,
}

// VitalSigns carries the measurements taken in the field. All fields are
// optional; absent values are omitted from storage.
type VitalSigns struct {
	HeartRate     *int     `json:"heart_rate,omitempty"`
	SystolicBP    *int     `json:"systolic_bp,omitempty"`
	DiastolicBP   *int     `json:"diastolic_bp,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	RespirateRate *int     `json:"respiratory_rate,omitempty"`
	OxygenSat     *int     `json:"oxygen_saturation,omitempty"`
}

// Patient is an emergency case registered by an EMS unit
type Patient struct {
	ID           types.ID       `json:"id"`
	UnitID       types.ID       `json:"unit_id"`
	Name         string         `json:"name"`
	Age          int            `json:"age"`
	Gender       string         `json:"gender"`
	DiseaseCode  string         `json:"disease_code"`
	SeverityCode string         `json:"severity_code"`
	Location     types.Location `json:"location"`
	VitalSigns   *VitalSigns    `json:"vital_signs,omitempty"`
	Status       Status         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RegisterInput holds the fields an EMS unit submits when registering a
// patient in the field
type RegisterInput struct {
	Name         string         `json:"name"`
	Age          int            `json:"age"`
	Gender       string         `json:"gender"`
	DiseaseCode  string         `json:"disease_code"`
	SeverityCode string         `json:"severity_code"`
	Location     types.Location `json:"location"`
	VitalSigns   *VitalSigns    `json:"vital_signs,omitempty"`
}

// Validate checks the registration input
func (in *RegisterInput) Validate() error {
	details := map[string]string{}

	if in.Name == "" {
		details["name"] = "name is required"
	}
	if in.Age < 0 || in.Age > 150 {
		details["age"] = "age must be between 0 and 150"
	}
	if in.Gender != "M" && in.Gender != "F" {
		details["gender"] = "gender must be M or F"
	}
	if in.DiseaseCode == "" {
		details["disease_code"] = "disease code is required"
	}
	if !validSeverityCodes[in.SeverityCode] {
		details["severity_code"] = "severity code must be a triage level 1-5"
	}
	if err := in.Location.Validate(); err != nil {
		details["location"] = err.Error()
	}

	if len(details) > 0 {
		return errors.Validation("validation failed", details)
	}
	return nil
}

// NewPatient creates a patient in the searching state from validated input
func NewPatient(unitID types.ID, in RegisterInput) *Patient {
	now := time.Now().UTC()
	return &Patient{
		ID:           types.NewID(),
		UnitID:       unitID,
		Name:         in.Name,
		Age:          in.Age,
		Gender:       in.Gender,
		DiseaseCode:  in.DiseaseCode,
		SeverityCode: in.SeverityCode,
		Location:     in.Location,
		VitalSigns:   in.VitalSigns,
		Status:       StatusSearching,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
