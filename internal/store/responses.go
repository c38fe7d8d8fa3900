package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
)

// SubmitResponse stores a response and folds it into its session's live
// results in one transaction. The whole unit commits or nothing does:
// a stored response is always reflected in the snapshot, and a duplicate
// (second response from the same identified participant) leaves both the
// response log and the snapshot untouched.
//
// apply runs inside the transaction against the stored session record and
// performs the aggregation merge. Returns the updated session.
func (s *Store) SubmitResponse(ctx context.Context, resp *domain.Response, apply func(*domain.Microclimate) error) (*domain.Microclimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated domain.Microclimate
	err := s.db.Update(func(txn *badger.Txn) error {
		// Reject a second response from the same identified participant.
		if resp.ParticipantID != "" {
			respondentKey := s.Responses.indexKey("respondent", resp.MicroclimateID+":"+resp.ParticipantID)
			_, err := txn.Get(respondentKey)
			if err == nil {
				return ErrAlreadyExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check respondent index: %w", err)
			}
			if err := txn.Set(respondentKey, []byte(resp.ID)); err != nil {
				return fmt.Errorf("set respondent index: %w", err)
			}
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		if err := txn.Set(s.Responses.key(resp.ID), data); err != nil {
			return fmt.Errorf("set response: %w", err)
		}
		sessionKey := s.Responses.indexKey("session", resp.MicroclimateID+":"+resp.ID)
		if err := txn.Set(sessionKey, []byte(resp.ID)); err != nil {
			return fmt.Errorf("set session index: %w", err)
		}

		var mc domain.Microclimate
		if err := s.Microclimates.getInTxn(txn, resp.MicroclimateID, &mc); err != nil {
			return err
		}
		if err := apply(&mc); err != nil {
			return err
		}

		mcData, err := json.Marshal(&mc)
		if err != nil {
			return fmt.Errorf("marshal microclimate: %w", err)
		}
		if err := txn.Set(s.Microclimates.key(mc.ID), mcData); err != nil {
			return fmt.Errorf("set microclimate: %w", err)
		}

		updated = mc
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return nil, fmt.Errorf("response %s lost a write race: %w", resp.ID, ErrConflict)
		}
		return nil, err
	}

	s.eventEmitter.Emit(sse.NewResultsUpdatedEvent(&updated))
	return &updated, nil
}

// GetResponse retrieves a response by ID.
func (s *Store) GetResponse(ctx context.Context, id string) (*domain.Response, error) {
	resp, err := s.Responses.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("response %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting response %s: %w", id, err)
	}
	return resp, nil
}

// HasResponded reports whether an identified participant already submitted
// for a session.
func (s *Store) HasResponded(ctx context.Context, microclimateID, participantID string) (bool, error) {
	if participantID == "" {
		return false, nil
	}
	return s.Responses.ExistsByIndex(ctx, "respondent", microclimateID+":"+participantID)
}

// ListResponsesBySession returns every response for a session in
// submission order.
func (s *Store) ListResponsesBySession(ctx context.Context, microclimateID string) ([]*domain.Response, error) {
	resps, err := s.Responses.ScanIndex(ctx, "session", microclimateID+":")
	if err != nil {
		return nil, fmt.Errorf("listing responses for %s: %w", microclimateID, err)
	}

	slices.SortFunc(resps, func(a, b *domain.Response) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	return resps, nil
}
