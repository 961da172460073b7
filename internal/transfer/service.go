package transfer

import (
	"context"
	"log/slog"

	"github.com/pulseroute/platform/internal/chat"
	"github.com/pulseroute/platform/internal/shared/auth"
	"github.com/pulseroute/platform/internal/shared/errors"
	"github.com/pulseroute/platform/internal/shared/events"
	"github.com/pulseroute/platform/internal/shared/metrics"
	"github.com/pulseroute/platform/internal/shared/types"
	"github.com/pulseroute/platform/internal/transfer/domain"
)

// AcceptResult is the outcome of a successful accept: the winning request,
// the siblings cancelled with it, and the provisioned chat channel
type AcceptResult struct {
	Request   *domain.Request  `json:"request"`
	Cancelled []domain.Request `json:"cancelled_requests,omitempty"`
	Channel   *chat.Channel    `json:"chat_channel,omitempty"`
}

// Service resolves transfer requests. The store's transitions decide every
// race; the service adds authorization, chat provisioning and lifecycle
// events around them.
type Service struct {
	store       domain.Store
	provisioner *chat.Provisioner
	bus         *events.Bus
	logger      *slog.Logger
}

// NewService creates a transfer resolution service
func NewService(store domain.Store, provisioner *chat.Provisioner, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		provisioner: provisioner,
		bus:         bus,
		logger:      logger,
	}
}

// Accept resolves a pending request in the hospital's favor. The patient
// is bound to this hospital and every still-pending sibling is cancelled.
// A request that already left the pending state yields a conflict.
func (s *Service) Accept(ctx context.Context, actor *auth.Actor, requestID types.ID) (*AcceptResult, error) {
	req, err := s.authorize(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.store.ResolveAccept(ctx, requestID)
	if err != nil {
		if errors.IsConflict(err) {
			metrics.RecordAcceptConflict()
		}
		return nil, err
	}

	metrics.RecordResolution(string(domain.StatusAccepted))
	for range outcome.Cancelled {
		metrics.RecordResolution(string(domain.StatusCancelled))
	}

	// The accept is durable at this point. A chat failure is logged and
	// surfaced, but the resolution itself does not roll back; a retry of
	// provisioning finds the accepted request and the same channel slot.
	channel, err := s.provisioner.Provision(ctx, outcome.Winner)
	if err != nil {
		s.logger.Error("chat provisioning failed after accept",
			"request_id", requestID, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TypeTransferAccepted, actor, map[string]any{
		"request_id":  outcome.Winner.ID,
		"patient_id":  outcome.Winner.PatientID,
		"hospital_id": outcome.Winner.HospitalID,
		"cancelled":   len(outcome.Cancelled),
		"channel_id":  channel.ID,
	})

	s.logger.Info("transfer request accepted",
		"request_id", req.ID,
		"patient_id", req.PatientID,
		"hospital_id", req.HospitalID,
		"cancelled_siblings", len(outcome.Cancelled))

	return &AcceptResult{
		Request:   outcome.Winner,
		Cancelled: outcome.Cancelled,
		Channel:   channel,
	}, nil
}

// Reject declines a pending request on the hospital's behalf. Siblings
// and the patient are unaffected; an empty reason records the default.
func (s *Service) Reject(ctx context.Context, actor *auth.Actor, requestID types.ID, reason string) (*domain.Request, error) {
	if _, err := s.authorize(ctx, actor, requestID); err != nil {
		return nil, err
	}

	if reason == "" {
		reason = domain.DefaultRejectionReason
	}

	req, err := s.store.ResolveReject(ctx, requestID, reason)
	if err != nil {
		return nil, err
	}

	metrics.RecordResolution(string(domain.StatusRejected))
	s.publish(ctx, events.TypeTransferRejected, actor, map[string]any{
		"request_id":  req.ID,
		"patient_id":  req.PatientID,
		"hospital_id": req.HospitalID,
		"reason":      reason,
	})

	return req, nil
}

// Get returns a single transfer request
func (s *Service) Get(ctx context.Context, id types.ID) (*domain.Request, error) {
	return s.store.Get(ctx, id)
}

// Pending returns the acting hospital's open request queue
func (s *Service) Pending(ctx context.Context, actor *auth.Actor) ([]domain.Request, error) {
	return s.store.ListPendingByHospital(ctx, actor.ID)
}

// Resolved returns the acting hospital's resolved requests, newest first
func (s *Service) Resolved(ctx context.Context, actor *auth.Actor) ([]domain.Request, error) {
	return s.store.ListResolvedByHospital(ctx, actor.ID)
}

// authorize loads the request and verifies the actor is the hospital it
// was offered to. The check is advisory; the store transition remains the
// arbiter under concurrent resolutions.
func (s *Service) authorize(ctx context.Context, actor *auth.Actor, requestID types.ID) (*domain.Request, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if actor == nil || !actor.IsHospital() {
		return nil, errors.Forbidden("only hospitals can resolve transfer requests")
	}
	if req.HospitalID != actor.ID {
		return nil, errors.Forbidden("transfer request belongs to another hospital")
	}

	return req, nil
}

func (s *Service) publish(ctx context.Context, eventType string, actor *auth.Actor, data map[string]any) {
	event := events.NewEvent(eventType, "transfer-service", data).
		WithActor(actor.ID, actor.Type)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
