package domain

import (
	"testing"

	"github.com/pulseroute/platform/internal/shared/types"
)

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusAccepted, true},
		{StatusRejected, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if tt.status.IsTerminal() != tt.terminal {
				t.Errorf("Expected IsTerminal=%v for %s", tt.terminal, tt.status)
			}
		})
	}
}

func TestNewRequest(t *testing.T) {
	patientID, unitID, hospitalID := types.NewID(), types.NewID(), types.NewID()

	req := NewRequest(patientID, unitID, hospitalID, 0.85, 12.4)

	if req.ID.IsZero() {
		t.Error("Expected a generated request ID")
	}
	if req.Status != StatusPending {
		t.Errorf("Expected new request pending, got %s", req.Status)
	}
	if req.PatientID != patientID || req.UnitID != unitID || req.HospitalID != hospitalID {
		t.Error("Request bound to wrong parties")
	}
	if req.RankScore != 0.85 || req.DistanceKM != 12.4 {
		t.Errorf("Score or distance not carried: %+v", req)
	}
}

func TestNewRequestTravelEstimate(t *testing.T) {
	tests := []struct {
		distanceKM float64
		expected   int
	}{
		{0, 0},
		{1, 2},
		{12.4, 25},
		{50, 100},
	}

	for _, tt := range tests {
		req := NewRequest(types.NewID(), types.NewID(), types.NewID(), 1, tt.distanceKM)
		if req.EstimatedTimeMinutes != tt.expected {
			t.Errorf("Distance %.1f km: expected %d minutes, got %d",
				tt.distanceKM, tt.expected, req.EstimatedTimeMinutes)
		}
	}
}
