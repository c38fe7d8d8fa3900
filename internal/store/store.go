package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// EventEmitter is the interface for emitting SSE events.
// Store uses this to broadcast changes without depending on SSE implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// SearchIndexer keeps the session search index in sync with store writes.
// Index updates must not block store operations.
type SearchIndexer interface {
	IndexMicroclimate(ctx context.Context, mc *domain.Microclimate) error
	DeleteMicroclimate(ctx context.Context, id string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexMicroclimate is a no-op.
func (NoopSearchIndexer) IndexMicroclimate(context.Context, *domain.Microclimate) error { return nil }

// DeleteMicroclimate is a no-op.
func (NoopSearchIndexer) DeleteMicroclimate(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// SSE event emitter for broadcasting changes.
	eventEmitter EventEmitter

	// Search indexer for keeping session search in sync with store changes.
	// Set via SetSearchIndexer after store creation to avoid circular dependencies.
	searchIndexer SearchIndexer

	// Generic entities
	Microclimates *Entity[domain.Microclimate]
	Invitations   *Entity[domain.Invitation]
	Responses     *Entity[domain.Response]
	Users         *Entity[domain.User]
}

// New creates a new Store instance with the given database path and event emitter.
// The emitter is required and used to broadcast store changes via SSE.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Responses must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
	}

	store.initMicroclimates()
	store.initInvitations()
	store.initResponses()
	store.initUsers()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
// This is set after store creation to avoid circular dependencies
// (store needs to exist before search service can be created).
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.searchIndexer = indexer
}

// initMicroclimates initializes the Microclimates entity.
// Indexed by company for the dashboard list view.
func (s *Store) initMicroclimates() {
	s.Microclimates = NewEntity[domain.Microclimate](s, "mc:").
		WithIndex("company", func(mc *domain.Microclimate) []string {
			return []string{mc.CompanyID + ":" + mc.ID}
		})
}

// initInvitations initializes the Invitations entity.
// The participant index is unique: one invitation per (session, participant).
func (s *Store) initInvitations() {
	s.Invitations = NewEntity[domain.Invitation](s, "inv:").
		WithUniqueIndex("participant", func(inv *domain.Invitation) []string {
			return []string{inv.MicroclimateID + ":" + inv.ParticipantID}
		}).
		WithIndex("session", func(inv *domain.Invitation) []string {
			return []string{inv.MicroclimateID + ":" + inv.ID}
		})
}

// initResponses initializes the Responses entity.
// The respondent index is unique and enforces one response per participant
// per session. Anonymous responses carry no participant ID and produce no
// respondent key, so they never collide.
func (s *Store) initResponses() {
	s.Responses = NewEntity[domain.Response](s, "resp:").
		WithUniqueIndex("respondent", func(r *domain.Response) []string {
			if r.ParticipantID == "" {
				return nil
			}
			return []string{r.MicroclimateID + ":" + r.ParticipantID}
		}).
		WithIndex("session", func(r *domain.Response) []string {
			return []string{r.MicroclimateID + ":" + r.ID}
		})
}

// initUsers initializes the Users entity with a case-insensitive email index.
func (s *Store) initUsers() {
	s.Users = NewEntity[domain.User](s, "user:").
		WithUniqueIndex("email", func(u *domain.User) []string {
			return []string{normalizeEmail(u.Email)}
		})
}

// normalizeEmail lowercases and trims an email for index keys and lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
