package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// CreateInvitation stores a new invitation.
// Returns ErrAlreadyExists when the participant already has an invitation
// for the session (the participant index is unique).
func (s *Store) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	if err := s.Invitations.Create(ctx, inv.ID, inv); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("invitation for participant %s in %s: %w",
				inv.ParticipantID, inv.MicroclimateID, ErrAlreadyExists)
		}
		return fmt.Errorf("creating invitation %s: %w", inv.ID, err)
	}
	return nil
}

// GetInvitation retrieves an invitation by ID.
func (s *Store) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	inv, err := s.Invitations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting invitation %s: %w", id, err)
	}
	return inv, nil
}

// GetInvitationByParticipant finds the one invitation for a participant in
// a session.
func (s *Store) GetInvitationByParticipant(ctx context.Context, microclimateID, participantID string) (*domain.Invitation, error) {
	inv, err := s.Invitations.GetByIndex(ctx, "participant", microclimateID+":"+participantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invitation for participant %s in %s: %w",
				participantID, microclimateID, ErrNotFound)
		}
		return nil, fmt.Errorf("looking up invitation for participant %s: %w", participantID, err)
	}
	return inv, nil
}

// UpdateInvitation replaces an invitation.
func (s *Store) UpdateInvitation(ctx context.Context, inv *domain.Invitation) error {
	if err := s.Invitations.Update(ctx, inv.ID, inv); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("invitation %s: %w", inv.ID, ErrNotFound)
		}
		return fmt.Errorf("updating invitation %s: %w", inv.ID, err)
	}
	return nil
}

// MutateInvitation applies mutate to the stored invitation inside one
// transaction when check accepts the current record. The read-check-write
// runs atomically, so two racing webhook deliveries cannot both advance
// the same invitation.
func (s *Store) MutateInvitation(ctx context.Context, id string, check func(*domain.Invitation) bool, mutate func(*domain.Invitation)) (*domain.Invitation, error) {
	inv, err := s.Invitations.UpdateIf(ctx, id, check, mutate)
	if err != nil {
		return nil, fmt.Errorf("mutating invitation %s: %w", id, err)
	}
	return inv, nil
}

// ListInvitationsBySession returns every invitation for a session,
// oldest first.
func (s *Store) ListInvitationsBySession(ctx context.Context, microclimateID string) ([]*domain.Invitation, error) {
	invs, err := s.Invitations.ScanIndex(ctx, "session", microclimateID+":")
	if err != nil {
		return nil, fmt.Errorf("listing invitations for %s: %w", microclimateID, err)
	}

	slices.SortFunc(invs, func(a, b *domain.Invitation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return invs, nil
}
