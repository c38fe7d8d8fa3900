package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pulsecheckapp/pulsecheck-server/internal/clock"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
)

// InvitationService tracks each participant's path through a session and
// absorbs delivery webhooks. All state changes go through the store's
// conditional writes; duplicate or out-of-order webhook deliveries are
// dropped, never errors.
type InvitationService struct {
	store        *store.Store
	events       store.EventEmitter
	microclimate *MicroclimateService
	clock        clock.Clock
	logger       *slog.Logger
}

// NewInvitationService creates the invitation lifecycle service.
func NewInvitationService(st *store.Store, events store.EventEmitter, mcs *MicroclimateService, clk clock.Clock, logger *slog.Logger) *InvitationService {
	if events == nil {
		events = store.NoopEmitter{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &InvitationService{
		store:        st,
		events:       events,
		microclimate: mcs,
		clock:        clk,
		logger:       logger,
	}
}

// InviteRequest adds participants to an existing session.
type InviteRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,max=1000,dive,required"`
}

// Invite creates pending invitations for the listed participants. Invitations
// expire when the session's response window closes. Participants who already
// hold an invitation are skipped, not errored.
func (s *InvitationService) Invite(ctx context.Context, mcID string, req InviteRequest) ([]*domain.Invitation, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	mc, err := s.microclimate.Get(ctx, mcID)
	if err != nil {
		return nil, err
	}
	if mc.Status.IsTerminal() {
		return nil, apperrors.Conflictf("cannot invite to a %s session", mc.Status)
	}

	now := s.clock.Now()
	created := make([]*domain.Invitation, 0, len(req.ParticipantIDs))
	for _, participantID := range req.ParticipantIDs {
		inv, err := s.microclimate.invite(ctx, mc, participantID, now)
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				s.logger.Debug("participant already invited",
					"microclimate_id", mcID, "participant_id", participantID)
				continue
			}
			return created, mapStoreError(err)
		}
		created = append(created, inv)
	}

	if len(created) > 0 {
		s.widenTarget(ctx, mcID, now)
	}

	s.logger.Info("participants invited",
		"microclimate_id", mcID, "requested", len(req.ParticipantIDs), "created", len(created))
	return created, nil
}

// widenTarget raises the session's participation denominator to cover every
// invited participant, so late invitees do not inflate the rate. An explicit
// target already above the invited population stays put.
func (s *InvitationService) widenTarget(ctx context.Context, mcID string, now time.Time) {
	all, err := s.store.ListInvitationsBySession(ctx, mcID)
	if err != nil {
		s.logger.Warn("failed to count invitations after invite",
			"microclimate_id", mcID, "error", err)
		return
	}

	target := len(all)
	_, err = s.store.MutateMicroclimate(ctx, mcID,
		func(*domain.Microclimate) bool { return true },
		func(cur *domain.Microclimate) {
			if cur.TargetParticipantCount >= target {
				return
			}
			cur.TargetParticipantCount = target
			if cur.LiveResults != nil {
				cur.LiveResults.ParticipationRate = cur.ParticipationRate()
			}
			cur.UpdatedAt = now
		})
	if err != nil {
		s.logger.Warn("failed to widen participation target",
			"microclimate_id", mcID, "error", err)
	}
}

// List returns every invitation for a session, oldest first, with expiry
// resolved against the clock in memory.
func (s *InvitationService) List(ctx context.Context, mcID string) ([]*domain.Invitation, error) {
	invs, err := s.store.ListInvitationsBySession(ctx, mcID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.clock.Now()
	for _, inv := range invs {
		if !inv.Status.IsTerminal() && inv.IsExpired(now) {
			inv.Status = domain.InvitationExpired
		}
	}
	return invs, nil
}

// DeliveryEvent names a webhook event from the delivery channel.
type DeliveryEvent string

// Delivery events accepted by RecordEvent.
const (
	EventSent    DeliveryEvent = "sent"
	EventOpened  DeliveryEvent = "opened"
	EventStarted DeliveryEvent = "started"
	EventBounced DeliveryEvent = "bounced"
)

// RecordEvent applies one delivery webhook to a participant's invitation.
// Events can arrive late, duplicated, or out of order; anything that would
// move the invitation backwards, touch a terminal one, or land after the
// deadline is dropped and reported as applied=false, never as an error.
// An event for an invitation that no longer exists is dropped the same way.
func (s *InvitationService) RecordEvent(ctx context.Context, mcID, participantID string, event DeliveryEvent) (*domain.Invitation, bool, error) {
	if !knownEvent(event) {
		return nil, false, apperrors.Validationf("unknown delivery event %q", event)
	}

	inv, err := s.store.GetInvitationByParticipant(ctx, mcID, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("delivery event for unknown invitation dropped",
				"microclimate_id", mcID, "participant_id", participantID, "event", event)
			return nil, false, nil
		}
		return nil, false, mapStoreError(err)
	}

	now := s.clock.Now()
	applied := false
	expired := false
	updated, err := s.store.MutateInvitation(ctx, inv.ID,
		func(*domain.Invitation) bool { return true },
		func(cur *domain.Invitation) {
			// The deadline is checked inside the mutation so a stale webhook
			// cannot advance an invitation the sweep has not expired yet.
			if !cur.Status.IsTerminal() && cur.IsExpired(now) {
				expired = cur.Expire(now)
				return
			}
			switch event {
			case EventSent:
				applied = cur.MarkSent(now)
			case EventOpened:
				applied = cur.MarkOpened(now)
			case EventStarted:
				applied = cur.MarkStarted(now)
			case EventBounced:
				applied = cur.MarkBounced(now)
			}
		})
	if err != nil {
		return nil, false, mapStoreError(err)
	}

	switch {
	case applied:
		s.events.Emit(sse.NewInvitationUpdatedEvent(updated, s.companyFor(ctx, mcID)))
		s.logger.Debug("invitation advanced",
			"invitation_id", updated.ID, "event", event, "status", updated.Status)
	case expired:
		s.events.Emit(sse.NewInvitationUpdatedEvent(updated, s.companyFor(ctx, mcID)))
		s.logger.Debug("delivery event arrived after expiry, invitation expired",
			"invitation_id", updated.ID, "event", event)
	default:
		s.logger.Debug("stale delivery event dropped",
			"invitation_id", updated.ID, "event", event, "status", updated.Status)
	}
	return updated, applied, nil
}

func knownEvent(event DeliveryEvent) bool {
	switch event {
	case EventSent, EventOpened, EventStarted, EventBounced:
		return true
	}
	return false
}

// companyFor resolves the session's tenant for event scoping. Event scoping
// is best-effort; a lookup failure scopes the event to nobody rather than
// leaking it across tenants.
func (s *InvitationService) companyFor(ctx context.Context, mcID string) string {
	mc, err := s.store.GetMicroclimate(ctx, mcID)
	if err != nil {
		return ""
	}
	return mc.CompanyID
}
