package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
)

// CreateMicroclimate stores a new session and announces it.
// Returns ErrAlreadyExists if a session with this ID already exists.
func (s *Store) CreateMicroclimate(ctx context.Context, mc *domain.Microclimate) error {
	if err := s.Microclimates.Create(ctx, mc.ID, mc); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("microclimate %s: %w", mc.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("creating microclimate %s: %w", mc.ID, err)
	}

	s.eventEmitter.Emit(sse.NewMicroclimateCreatedEvent(mc))
	s.indexMicroclimate(mc)
	return nil
}

// GetMicroclimate retrieves a session by ID.
// Returns ErrNotFound if the session does not exist.
func (s *Store) GetMicroclimate(ctx context.Context, id string) (*domain.Microclimate, error) {
	mc, err := s.Microclimates.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("microclimate %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting microclimate %s: %w", id, err)
	}
	return mc, nil
}

// UpdateMicroclimate replaces a session unconditionally and announces it.
// Returns ErrNotFound if the session does not exist.
func (s *Store) UpdateMicroclimate(ctx context.Context, mc *domain.Microclimate) error {
	if err := s.Microclimates.Update(ctx, mc.ID, mc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("microclimate %s: %w", mc.ID, ErrNotFound)
		}
		return fmt.Errorf("updating microclimate %s: %w", mc.ID, err)
	}

	s.eventEmitter.Emit(sse.NewMicroclimateUpdatedEvent(mc))
	s.indexMicroclimate(mc)
	return nil
}

// TransitionMicroclimateStatus moves a session from one status to another,
// but only if the stored status still matches from. A concurrent transition
// surfaces as ErrConflict so the caller can re-read and re-resolve.
// Returns the updated session and announces the transition.
func (s *Store) TransitionMicroclimateStatus(ctx context.Context, id string, from, to domain.Status, now time.Time) (*domain.Microclimate, error) {
	updated, err := s.Microclimates.UpdateIf(ctx, id,
		func(mc *domain.Microclimate) bool {
			return mc.Status == from
		},
		func(mc *domain.Microclimate) {
			mc.Status = to
			mc.UpdatedAt = now
		})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("microclimate %s: %w", id, ErrNotFound)
		}
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("microclimate %s status changed concurrently: %w", id, ErrConflict)
		}
		return nil, fmt.Errorf("transitioning microclimate %s: %w", id, err)
	}

	s.eventEmitter.Emit(sse.NewStatusChangedEvent(updated, from, to, updated.UpdatedAt))
	s.indexMicroclimate(updated)
	return updated, nil
}

// MutateMicroclimate applies mutate to the stored session inside one
// transaction when check accepts the current record. ErrConflict on a
// failed check. No events are emitted; callers announce what changed.
func (s *Store) MutateMicroclimate(ctx context.Context, id string, check func(*domain.Microclimate) bool, mutate func(*domain.Microclimate)) (*domain.Microclimate, error) {
	updated, err := s.Microclimates.UpdateIf(ctx, id, check, mutate)
	if err != nil {
		return nil, fmt.Errorf("mutating microclimate %s: %w", id, err)
	}
	return updated, nil
}

// ListMicroclimatesByCompany returns a company's sessions, newest first.
func (s *Store) ListMicroclimatesByCompany(ctx context.Context, companyID string) ([]*domain.Microclimate, error) {
	mcs, err := s.Microclimates.ScanIndex(ctx, "company", companyID+":")
	if err != nil {
		return nil, fmt.Errorf("listing microclimates for company %s: %w", companyID, err)
	}

	slices.SortFunc(mcs, func(a, b *domain.Microclimate) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return mcs, nil
}

// DeleteMicroclimate removes a session. Idempotent.
func (s *Store) DeleteMicroclimate(ctx context.Context, id string) error {
	if err := s.Microclimates.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting microclimate %s: %w", id, err)
	}

	if s.searchIndexer != nil {
		go func() {
			if err := s.searchIndexer.DeleteMicroclimate(context.Background(), id); err != nil {
				if s.logger != nil {
					s.logger.Warn("failed to remove microclimate from search", "microclimate_id", id, "error", err)
				}
			}
		}()
	}
	return nil
}

// indexMicroclimate pushes a session into the search index asynchronously.
func (s *Store) indexMicroclimate(mc *domain.Microclimate) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexMicroclimate(context.Background(), mc); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to index microclimate for search", "microclimate_id", mc.ID, "error", err)
			}
		}
	}()
}
