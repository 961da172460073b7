package matching

import "github.com/pulseroute/platform/internal/shared/types"

// PatientInfo is the slice of a patient the matching pipeline needs:
// identity for the fan-out, location and clinical codes for ranking.
// Callers build it from their own patient record.
type PatientInfo struct {
	ID           types.ID
	UnitID       types.ID
	Location     types.Location
	DiseaseCode  string
	SeverityCode string
}
