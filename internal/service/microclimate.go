package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsecheckapp/pulsecheck-server/internal/clock"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/id"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
	"github.com/pulsecheckapp/pulsecheck-server/internal/validation"
)

// validate is the shared request validator for the service layer.
var validate = validation.New()

// MicroclimateService is the coordinator: the only component that creates
// sessions, resolves their status, and folds responses into live results.
type MicroclimateService struct {
	store      *store.Store
	events     store.EventEmitter
	clock      clock.Clock
	scorer     domain.SentimentScorer
	thresholds ThresholdSource
	logger     *slog.Logger
	locks      *sessionLocks

	// allowPausedSubmissions keeps collecting responses while a facilitator
	// has a session on hold. Off by default.
	allowPausedSubmissions bool
}

// MicroclimateOptions configure the coordinator.
type MicroclimateOptions struct {
	Clock                  clock.Clock
	Scorer                 domain.SentimentScorer
	Thresholds             ThresholdSource
	AllowPausedSubmissions bool
}

// NewMicroclimateService creates the coordinator.
func NewMicroclimateService(st *store.Store, events store.EventEmitter, logger *slog.Logger, opts MicroclimateOptions) *MicroclimateService {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Scorer == nil {
		opts.Scorer = domain.NewLexiconScorer()
	}
	if opts.Thresholds == nil {
		opts.Thresholds = StaticThresholds{Thresholds: domain.DefaultEngagementThresholds()}
	}
	if events == nil {
		events = store.NoopEmitter{}
	}
	return &MicroclimateService{
		store:                  st,
		events:                 events,
		clock:                  opts.Clock,
		scorer:                 opts.Scorer,
		thresholds:             opts.Thresholds,
		logger:                 logger,
		locks:                  newSessionLocks(),
		allowPausedSubmissions: opts.AllowPausedSubmissions,
	}
}

// QuestionRequest is one question in a create request.
type QuestionRequest struct {
	Text    string   `json:"text" validate:"required,max=500"`
	Type    string   `json:"type" validate:"required,oneof=likert multiple_choice open_text rating"`
	Options []string `json:"options,omitempty" validate:"omitempty,max=10,dive,required,max=200"`
}

// CreateMicroclimateRequest contains the data for creating a session.
type CreateMicroclimateRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description,omitempty" validate:"max=2000"`
	Questions   []QuestionRequest `json:"questions" validate:"required,min=1,max=20,dive"`

	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	Timezone        string    `json:"timezone,omitempty" validate:"omitempty,timezone"`
	AutoClose       bool      `json:"auto_close,omitempty"`

	MaxParticipants        int      `json:"max_participants,omitempty" validate:"gte=0"`
	TargetParticipantCount int      `json:"target_participant_count,omitempty" validate:"gte=0"`
	ParticipantIDs         []string `json:"participant_ids,omitempty" validate:"omitempty,max=1000,dive,required"`

	Anonymous              bool    `json:"anonymous,omitempty"`
	ShowLiveResults        bool    `json:"show_live_results,omitempty"`
	SentimentEnabled       bool    `json:"sentiment_enabled,omitempty"`
	WordCloudEnabled       bool    `json:"word_cloud_enabled,omitempty"`
	ParticipationThreshold float64 `json:"participation_threshold,omitempty" validate:"gte=0,lte=100"`
}

// Create validates and stores a new session, plus one invitation per listed
// participant. The session starts as draft; the clock moves it from there.
func (s *MicroclimateService) Create(ctx context.Context, companyID, createdBy string, req CreateMicroclimateRequest) (*domain.Microclimate, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	mcID, err := id.Generate("mc")
	if err != nil {
		return nil, fmt.Errorf("generate microclimate ID: %w", err)
	}

	now := s.clock.Now()
	mc := domain.NewMicroclimate(mcID, companyID, req.Title, createdBy, now)
	mc.Description = req.Description
	mc.Scheduling = domain.Scheduling{
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
		AutoClose:       req.AutoClose,
	}
	mc.Targeting = domain.Targeting{MaxParticipants: req.MaxParticipants}
	mc.Settings = domain.Settings{
		Anonymous:              req.Anonymous,
		ShowLiveResults:        req.ShowLiveResults,
		SentimentEnabled:       req.SentimentEnabled,
		WordCloudEnabled:       req.WordCloudEnabled,
		ParticipationThreshold: req.ParticipationThreshold,
	}
	mc.TargetParticipantCount = req.TargetParticipantCount
	if mc.TargetParticipantCount == 0 {
		mc.TargetParticipantCount = len(req.ParticipantIDs)
	}

	for _, q := range req.Questions {
		qID, err := id.Generate("q")
		if err != nil {
			return nil, fmt.Errorf("generate question ID: %w", err)
		}
		mc.Questions = append(mc.Questions, domain.Question{
			ID:      qID,
			Text:    q.Text,
			Type:    domain.QuestionType(q.Type),
			Options: q.Options,
		})
	}

	// Configuration errors are rejected here, never repaired later.
	if err := mc.ValidateConfiguration(); err != nil {
		return nil, err
	}

	if err := s.store.CreateMicroclimate(ctx, mc); err != nil {
		return nil, err
	}

	for _, participantID := range req.ParticipantIDs {
		if _, err := s.invite(ctx, mc, participantID, now); err != nil {
			// The session exists; a single bad participant should not sink it.
			s.logger.Warn("failed to create invitation",
				"microclimate_id", mc.ID, "participant_id", participantID, "error", err)
		}
	}

	s.logger.Info("microclimate created",
		"microclimate_id", mc.ID,
		"company_id", companyID,
		"questions", len(mc.Questions),
		"invitations", len(req.ParticipantIDs),
		"starts_at", mc.Scheduling.StartTime,
	)
	return mc, nil
}

// invite creates one pending invitation expiring at the session's close.
func (s *MicroclimateService) invite(ctx context.Context, mc *domain.Microclimate, participantID string, now time.Time) (*domain.Invitation, error) {
	invID, err := id.Generate("inv")
	if err != nil {
		return nil, fmt.Errorf("generate invitation ID: %w", err)
	}
	inv := domain.NewInvitation(invID, mc.ID, participantID, mc.Scheduling.End(), now)
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns a session with its status freshly resolved against the clock.
// A status change observed on read is persisted with a conditional write, so
// any number of concurrent readers converge on one recorded transition.
func (s *MicroclimateService) Get(ctx context.Context, mcID string) (*domain.Microclimate, error) {
	mc, err := s.store.GetMicroclimate(ctx, mcID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return s.refreshStatus(ctx, mc)
}

// refreshStatus persists the time-derived status if it moved. On a write
// race it re-reads once; both racers computed from the same clock rules, so
// the second attempt either matches or finds the work already done.
func (s *MicroclimateService) refreshStatus(ctx context.Context, mc *domain.Microclimate) (*domain.Microclimate, error) {
	for attempt := 0; ; attempt++ {
		now := s.clock.Now()
		resolved := domain.ResolveStatus(now, mc.Scheduling, mc.Status)
		if resolved == mc.Status {
			return mc, nil
		}

		updated, err := s.store.TransitionMicroclimateStatus(ctx, mc.ID, mc.Status, resolved, now)
		if err == nil {
			s.logger.Info("session status advanced",
				"microclimate_id", mc.ID, "from", mc.Status, "to", resolved)
			return updated, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt > 0 {
			return nil, mapStoreError(err)
		}

		mc, err = s.store.GetMicroclimate(ctx, mc.ID)
		if err != nil {
			return nil, mapStoreError(err)
		}
	}
}

// List returns a company's sessions, newest first, with statuses resolved
// in memory. List is read-heavy; transitions are persisted on Get and on
// submission, not here.
func (s *MicroclimateService) List(ctx context.Context, companyID string) ([]*domain.Microclimate, error) {
	mcs, err := s.store.ListMicroclimatesByCompany(ctx, companyID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.clock.Now()
	for _, mc := range mcs {
		mc.Status = domain.ResolveStatus(now, mc.Scheduling, mc.Status)
	}
	return mcs, nil
}

// Pause puts an active session on manual hold. The hold is sticky: the
// clock will not resume it.
func (s *MicroclimateService) Pause(ctx context.Context, mcID string) (*domain.Microclimate, error) {
	mc, err := s.Get(ctx, mcID)
	if err != nil {
		return nil, err
	}
	if mc.Status != domain.StatusActive {
		return nil, apperrors.Conflictf("cannot pause a %s session", mc.Status)
	}

	updated, err := s.store.TransitionMicroclimateStatus(ctx, mcID, domain.StatusActive, domain.StatusPaused, s.clock.Now())
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("session paused", "microclimate_id", mcID)
	return updated, nil
}

// Resume lifts a pause. The session lands wherever the clock says it should
// be now, which may well be completed if the window closed during the hold.
func (s *MicroclimateService) Resume(ctx context.Context, mcID string) (*domain.Microclimate, error) {
	mc, err := s.store.GetMicroclimate(ctx, mcID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if mc.Status != domain.StatusPaused {
		return nil, apperrors.Conflictf("cannot resume a %s session", mc.Status)
	}

	now := s.clock.Now()
	target := mc.Scheduling.TimedStatus(now)
	updated, err := s.store.TransitionMicroclimateStatus(ctx, mcID, domain.StatusPaused, target, now)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("session resumed", "microclimate_id", mcID, "status", target)
	return updated, nil
}

// Cancel terminates a session permanently. Allowed from any non-terminal
// status; responses already collected stay stored.
func (s *MicroclimateService) Cancel(ctx context.Context, mcID string) (*domain.Microclimate, error) {
	mc, err := s.Get(ctx, mcID)
	if err != nil {
		return nil, err
	}
	if mc.Status.IsTerminal() {
		return nil, apperrors.Conflictf("cannot cancel a %s session", mc.Status)
	}

	updated, err := s.store.TransitionMicroclimateStatus(ctx, mcID, mc.Status, domain.StatusCancelled, s.clock.Now())
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("session cancelled", "microclimate_id", mcID)
	return updated, nil
}

// AnswerRequest is one question's answer in a submission.
type AnswerRequest struct {
	QuestionID  string `json:"question_id" validate:"required"`
	OptionIndex *int   `json:"option_index,omitempty" validate:"omitempty,gte=0"`
	FreeText    string `json:"free_text,omitempty" validate:"max=5000"`
}

// SubmitResponseRequest contains one participant's full submission.
type SubmitResponseRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

// SubmitResponse records a submission and merges it into the session's live
// results. The store performs the merge in one transaction; if anything in
// the unit fails, no trace of the response remains.
func (s *MicroclimateService) SubmitResponse(ctx context.Context, mcID, participantID string, req SubmitResponseRequest) (*domain.Microclimate, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	// Persist any pending time transition before admission control so the
	// rejection below reports the real status.
	mc, err := s.Get(ctx, mcID)
	if err != nil {
		return nil, err
	}
	if mc.Settings.Anonymous {
		// Anonymous sessions never record who answered.
		participantID = ""
	} else if participantID == "" {
		return nil, apperrors.Validation("participant is required for identified sessions")
	}

	respID, err := id.Generate("resp")
	if err != nil {
		return nil, fmt.Errorf("generate response ID: %w", err)
	}

	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.Answer{
			QuestionID:  a.QuestionID,
			OptionIndex: a.OptionIndex,
			FreeText:    a.FreeText,
		})
	}

	unlock := s.locks.Lock(mcID)
	defer unlock()

	now := s.clock.Now()
	resp := domain.NewResponse(respID, mcID, participantID, answers, now)

	updated, err := s.submitOnce(ctx, resp)
	if errors.Is(err, store.ErrConflict) {
		// One concurrent writer got there first. The admission checks run
		// inside the transaction, so a single retry is safe and sufficient.
		updated, err = s.submitOnce(ctx, resp)
	}
	if err != nil {
		return nil, err
	}

	if participantID != "" {
		s.markParticipated(ctx, updated, participantID, now)
	}

	s.logger.Debug("response recorded",
		"microclimate_id", mcID,
		"response_id", respID,
		"response_count", updated.ResponseCount,
		"engagement", updated.LiveResults.EngagementLevel,
	)
	return updated, nil
}

// submitOnce runs one transactional submission attempt.
func (s *MicroclimateService) submitOnce(ctx context.Context, resp *domain.Response) (*domain.Microclimate, error) {
	th := s.thresholds.Current()
	now := resp.SubmittedAt

	updated, err := s.store.SubmitResponse(ctx, resp, func(mc *domain.Microclimate) error {
		// Admission control runs against the stored record inside the
		// transaction, so a session closing mid-flight wins.
		resolved := domain.ResolveStatus(now, mc.Scheduling, mc.Status)
		if !mc.AcceptsResponses(resolved, s.allowPausedSubmissions) {
			return apperrors.ErrNotAcceptingResponses.WithDetails(map[string]any{
				"status": resolved,
			})
		}
		if limit := mc.Targeting.MaxParticipants; limit > 0 && mc.ResponseCount >= limit {
			return apperrors.Conflict("session is full")
		}

		mc.LiveResults.Apply(resp, mc, s.scorer, th)
		mc.ResponseCount = mc.LiveResults.ResponseCount
		mc.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.ErrDuplicateResponse.WithDetails(map[string]any{
				"participant_id": resp.ParticipantID,
			})
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, mapStoreError(err)
	}
	return updated, nil
}

// markParticipated advances the participant's invitation after a successful
// submission. An absent invitation is normal (open sessions, ad-hoc links);
// any other failure is logged and swallowed since the response is already
// committed.
func (s *MicroclimateService) markParticipated(ctx context.Context, mc *domain.Microclimate, participantID string, now time.Time) {
	inv, err := s.store.GetInvitationByParticipant(ctx, mc.ID, participantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("invitation lookup failed after submission",
				"microclimate_id", mc.ID, "participant_id", participantID, "error", err)
		}
		return
	}

	advanced := false
	updated, err := s.store.MutateInvitation(ctx, inv.ID,
		func(*domain.Invitation) bool { return true },
		func(cur *domain.Invitation) {
			advanced = cur.MarkParticipated(now)
		})
	if err != nil {
		s.logger.Warn("failed to mark invitation participated",
			"invitation_id", inv.ID, "error", err)
		return
	}
	if !advanced {
		s.logger.Debug("invitation already terminal, participation not re-marked",
			"invitation_id", inv.ID)
		return
	}
	s.events.Emit(sse.NewInvitationUpdatedEvent(updated, mc.CompanyID))
}

// Results returns the session's live results. Respects ShowLiveResults:
// while a session is still open, only managers may look.
func (s *MicroclimateService) Results(ctx context.Context, mcID string, isManager bool) (*domain.Microclimate, error) {
	mc, err := s.Get(ctx, mcID)
	if err != nil {
		return nil, err
	}
	if !isManager && !mc.Settings.ShowLiveResults && !mc.Status.IsTerminal() {
		return nil, apperrors.Forbidden("live results are not visible for this session")
	}
	return mc, nil
}

// mapStoreError converts store sentinels into domain errors so handlers
// only ever see one error vocabulary.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperrors.ErrNotFound.WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return apperrors.ErrAlreadyExists.WithCause(err)
	case errors.Is(err, store.ErrConflict):
		return apperrors.ErrConflict.WithCause(err)
	default:
		return err
	}
}
