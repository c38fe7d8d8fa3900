package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

func (s *Server) registerMicroclimateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createMicroclimate",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates",
		Summary:     "Create session",
		Description: "Creates a pulse session and invites the listed participants. Requires manager access.",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateMicroclimate)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMicroclimates",
		Method:      http.MethodGet,
		Path:        "/api/v1/microclimates",
		Summary:     "List sessions",
		Description: "Lists the caller's company sessions with current statuses",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMicroclimates)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMicroclimate",
		Method:      http.MethodGet,
		Path:        "/api/v1/microclimates/{id}",
		Summary:     "Get session",
		Description: "Returns a single session with its current status",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMicroclimate)

	huma.Register(s.api, huma.Operation{
		OperationID: "pauseMicroclimate",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/pause",
		Summary:     "Pause session",
		Description: "Places an active session on hold. Requires manager access.",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePauseMicroclimate)

	huma.Register(s.api, huma.Operation{
		OperationID: "resumeMicroclimate",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/resume",
		Summary:     "Resume session",
		Description: "Lifts a hold; the session lands wherever the clock says it should be. Requires manager access.",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleResumeMicroclimate)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelMicroclimate",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/cancel",
		Summary:     "Cancel session",
		Description: "Permanently cancels a session. Requires manager access.",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCancelMicroclimate)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMicroclimateResults",
		Method:      http.MethodGet,
		Path:        "/api/v1/microclimates/{id}/results",
		Summary:     "Get session results",
		Description: "Returns the live results snapshot, subject to the session's visibility settings",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetResults)

	huma.Register(s.api, huma.Operation{
		OperationID: "submitResponse",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/responses",
		Summary:     "Submit response",
		Description: "Records the caller's answers for an active session",
		Tags:        []string{"Microclimates"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSubmitResponse)

	huma.Register(s.api, huma.Operation{
		OperationID: "listInvitations",
		Method:      http.MethodGet,
		Path:        "/api/v1/microclimates/{id}/invitations",
		Summary:     "List invitations",
		Description: "Lists a session's invitations with current statuses. Requires manager access.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListInvitations)

	huma.Register(s.api, huma.Operation{
		OperationID: "inviteParticipants",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/invitations",
		Summary:     "Invite participants",
		Description: "Creates invitations for additional participants. Requires manager access.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleInviteParticipants)

	huma.Register(s.api, huma.Operation{
		OperationID: "recordDeliveryEvent",
		Method:      http.MethodPost,
		Path:        "/api/v1/microclimates/{id}/invitations/{participantId}/events",
		Summary:     "Record delivery event",
		Description: "Records a delivery callback (sent, opened, started, bounced) for one invitation. Requires manager access.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRecordDeliveryEvent)
}

// === DTOs ===

// CreateMicroclimateInput wraps the create request for Huma.
type CreateMicroclimateInput struct {
	Body service.CreateMicroclimateRequest
}

// SessionPathInput identifies one session.
type SessionPathInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SessionOutput wraps a single session for Huma.
type SessionOutput struct {
	Body *domain.Microclimate
}

// SessionListResponse contains a company's sessions.
type SessionListResponse struct {
	Sessions []*domain.Microclimate `json:"sessions" doc:"Sessions for the caller's company"`
	Total    int                    `json:"total" doc:"Number of sessions returned"`
}

// SessionListOutput wraps the session list for Huma.
type SessionListOutput struct {
	Body SessionListResponse
}

// ResultsResponse contains a session's results snapshot.
type ResultsResponse struct {
	SessionID              string              `json:"session_id" doc:"Session ID"`
	Status                 string              `json:"status" doc:"Current session status"`
	ResponseCount          int                 `json:"response_count" doc:"Number of accepted responses"`
	TargetParticipantCount int                 `json:"target_participant_count" doc:"Invited participant count"`
	TimeRemainingSeconds   int64               `json:"time_remaining_seconds,omitempty" doc:"Seconds left in the response window, omitted once closed"`
	Results                *domain.LiveResults `json:"results" doc:"Aggregated results snapshot"`
}

// ResultsOutput wraps the results response for Huma.
type ResultsOutput struct {
	Body ResultsResponse
}

// SubmitResponseInput wraps a submission with the session path and client
// address headers used for rate limiting.
type SubmitResponseInput struct {
	ID            string `path:"id" doc:"Session ID"`
	XForwardedFor string `header:"X-Forwarded-For"`
	XRealIP       string `header:"X-Real-IP"`
	Body          service.SubmitResponseRequest
}

// SubmitResponseResult confirms an accepted submission.
type SubmitResponseResult struct {
	Message       string `json:"message" doc:"Confirmation message"`
	ResponseCount int    `json:"response_count" doc:"Session response count after this submission"`
}

// SubmitResponseOutput wraps the submission result for Huma.
type SubmitResponseOutput struct {
	Body SubmitResponseResult
}

// InviteInput wraps an invite request for Huma.
type InviteInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body service.InviteRequest
}

// InvitationListResponse contains a session's invitations.
type InvitationListResponse struct {
	Invitations []*domain.Invitation `json:"invitations" doc:"Invitations for this session"`
	Total       int                  `json:"total" doc:"Number of invitations returned"`
}

// InvitationListOutput wraps the invitation list for Huma.
type InvitationListOutput struct {
	Body InvitationListResponse
}

// DeliveryEventRequest is the body of a delivery callback.
type DeliveryEventRequest struct {
	Event string `json:"event" doc:"Delivery event: sent, opened, started, or bounced"`
}

// DeliveryEventInput wraps a delivery callback for Huma.
type DeliveryEventInput struct {
	ID            string `path:"id" doc:"Session ID"`
	ParticipantID string `path:"participantId" doc:"Participant ID"`
	Body          DeliveryEventRequest
}

// DeliveryEventResponse reports what the callback did.
type DeliveryEventResponse struct {
	Invitation *domain.Invitation `json:"invitation" doc:"Invitation after the event"`
	Applied    bool               `json:"applied" doc:"Whether the event advanced the invitation"`
}

// DeliveryEventOutput wraps the delivery event response for Huma.
type DeliveryEventOutput struct {
	Body DeliveryEventResponse
}

// === Handlers ===

func (s *Server) handleCreateMicroclimate(ctx context.Context, input *CreateMicroclimateInput) (*SessionOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.Create(ctx, claims.CompanyID, claims.UserID, input.Body)
	if err != nil {
		return nil, err
	}

	return &SessionOutput{Body: mc}, nil
}

func (s *Server) handleListMicroclimates(ctx context.Context, _ *struct{}) (*SessionListOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.Microclimate.List(ctx, claims.CompanyID)
	if err != nil {
		return nil, err
	}

	if !claims.IsManager() {
		for _, mc := range sessions {
			redactResults(mc)
		}
	}

	return &SessionListOutput{
		Body: SessionListResponse{
			Sessions: sessions,
			Total:    len(sessions),
		},
	}, nil
}

func (s *Server) handleGetMicroclimate(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	mc, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID)
	if err != nil {
		return nil, err
	}

	if !claims.IsManager() {
		redactResults(mc)
	}

	return &SessionOutput{Body: mc}, nil
}

func (s *Server) handlePauseMicroclimate(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.Pause(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SessionOutput{Body: mc}, nil
}

func (s *Server) handleResumeMicroclimate(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.Resume(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SessionOutput{Body: mc}, nil
}

func (s *Server) handleCancelMicroclimate(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.Cancel(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SessionOutput{Body: mc}, nil
}

func (s *Server) handleGetResults(ctx context.Context, input *SessionPathInput) (*ResultsOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.Results(ctx, input.ID, claims.IsManager())
	if err != nil {
		return nil, err
	}

	// The countdown only makes sense while the session can still run.
	var remaining int64
	if !mc.Status.IsTerminal() {
		remaining = int64(mc.TimeRemaining(s.clock.Now()).Seconds())
	}

	return &ResultsOutput{
		Body: ResultsResponse{
			SessionID:              mc.ID,
			Status:                 string(mc.Status),
			ResponseCount:          mc.ResponseCount,
			TargetParticipantCount: mc.TargetParticipantCount,
			TimeRemainingSeconds:   remaining,
			Results:                mc.LiveResults,
		},
	}, nil
}

func (s *Server) handleSubmitResponse(ctx context.Context, input *SubmitResponseInput) (*SubmitResponseOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	key := input.ID + "|" + clientKey(input.XForwardedFor, input.XRealIP, claims.UserID)
	if !s.submitLimiter.Allow(key) {
		return nil, huma.Error429TooManyRequests("Too many submissions, slow down")
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	mc, err := s.services.Microclimate.SubmitResponse(ctx, input.ID, claims.UserID, input.Body)
	if err != nil {
		return nil, err
	}

	return &SubmitResponseOutput{
		Body: SubmitResponseResult{
			Message:       "Response recorded",
			ResponseCount: mc.ResponseCount,
		},
	}, nil
}

func (s *Server) handleListInvitations(ctx context.Context, input *SessionPathInput) (*InvitationListOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	invitations, err := s.services.Invitation.List(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &InvitationListOutput{
		Body: InvitationListResponse{
			Invitations: invitations,
			Total:       len(invitations),
		},
	}, nil
}

func (s *Server) handleInviteParticipants(ctx context.Context, input *InviteInput) (*InvitationListOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	invitations, err := s.services.Invitation.Invite(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &InvitationListOutput{
		Body: InvitationListResponse{
			Invitations: invitations,
			Total:       len(invitations),
		},
	}, nil
}

func (s *Server) handleRecordDeliveryEvent(ctx context.Context, input *DeliveryEventInput) (*DeliveryEventOutput, error) {
	claims, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionForCompany(ctx, input.ID, claims.CompanyID); err != nil {
		return nil, err
	}

	inv, applied, err := s.services.Invitation.RecordEvent(ctx, input.ID, input.ParticipantID, service.DeliveryEvent(input.Body.Event))
	if err != nil {
		return nil, err
	}

	return &DeliveryEventOutput{
		Body: DeliveryEventResponse{
			Invitation: inv,
			Applied:    applied,
		},
	}, nil
}

// === Helpers ===

// sessionForCompany fetches a session and fences it to the caller's company.
// Sessions in other tenants read as not found rather than forbidden, so their
// existence never leaks.
func (s *Server) sessionForCompany(ctx context.Context, id, companyID string) (*domain.Microclimate, error) {
	mc, err := s.services.Microclimate.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mc.CompanyID != companyID {
		return nil, apperrors.NotFound("session not found")
	}
	return mc, nil
}

// redactResults strips the live snapshot from sessions a non-manager should
// not see mid-flight.
func redactResults(mc *domain.Microclimate) {
	if mc.Settings.ShowLiveResults || mc.Status.IsTerminal() {
		return
	}
	mc.LiveResults = nil
}

// clientKey picks the best available identity for the submit rate limiter.
func clientKey(xForwardedFor, xRealIP, userID string) string {
	if xForwardedFor != "" {
		for i := 0; i < len(xForwardedFor); i++ {
			if xForwardedFor[i] == ',' {
				return xForwardedFor[:i]
			}
		}
		return xForwardedFor
	}
	if xRealIP != "" {
		return xRealIP
	}
	return userID
}
