package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulseroute/platform/internal/shared/events"
	"github.com/pulseroute/platform/internal/shared/metrics"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// Provisioner creates the communication channel for an accepted transfer.
// Provisioning is idempotent per request, so a retried accept never
// produces a second channel.
type Provisioner struct {
	repo   Repository
	bus    *events.Bus
	logger *slog.Logger
}

// NewProvisioner creates a chat provisioner
func NewProvisioner(repo Repository, bus *events.Bus, logger *slog.Logger) *Provisioner {
	return &Provisioner{repo: repo, bus: bus, logger: logger}
}

// Provision ensures a channel exists for the accepted request and returns
// it. Calling it again for the same request returns the existing channel.
func (p *Provisioner) Provision(ctx context.Context, req *domain.Request) (*Channel, error) {
	ch := &Channel{
		ID:         types.NewID(),
		RequestID:  req.ID,
		PatientID:  req.PatientID,
		UnitID:     req.UnitID,
		HospitalID: req.HospitalID,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	stored, created, err := p.repo.CreateIfAbsent(ctx, ch)
	if err != nil {
		return nil, err
	}

	if created {
		metrics.RecordChatChannelCreated()
		event := events.NewEvent(events.TypeChatCreated, "chat-provisioner", map[string]any{
			"channel_id":  stored.ID,
			"request_id":  stored.RequestID,
			"patient_id":  stored.PatientID,
			"hospital_id": stored.HospitalID,
		})
		if err := p.bus.Publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish chat event",
				"channel_id", stored.ID, "error", err)
		}
	}

	return stored, nil
}
