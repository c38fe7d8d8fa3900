// Package sse implements Server-Sent Events for live session updates and event broadcasting.
package sse

import (
	"time"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventMicroclimateCreated represents a session creation event.
	EventMicroclimateCreated EventType = "microclimate.created"
	// EventMicroclimateUpdated represents a session update event.
	EventMicroclimateUpdated EventType = "microclimate.updated"
	// EventStatusChanged represents a session status transition.
	EventStatusChanged EventType = "microclimate.status_changed"

	// EventResultsUpdated carries a fresh results snapshot after a response
	// is folded in. This is the high-frequency event on active sessions.
	EventResultsUpdated EventType = "results.updated"

	// EventInvitationUpdated represents an invitation state change.
	// Only sent to managers.
	EventInvitationUpdated EventType = "invitation.updated"
	// EventReminderSent represents a reminder dispatch.
	// Only sent to managers.
	EventReminderSent EventType = "reminder.sent"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"` // Event-specific data as JSON object
	Type      EventType `json:"type"`

	// Filtering fields for multi-tenant support.
	// When set, events are only delivered to clients matching these criteria.
	// Empty string means "broadcast to all".
	UserID    string `json:"-"` // Filter to specific user (not sent to client)
	CompanyID string `json:"-"` // Filter to one company's viewers
	SessionID string `json:"-"` // Filter to viewers of one session
}

// MicroclimateEventData is the data payload for session lifecycle events.
type MicroclimateEventData struct {
	Microclimate *domain.Microclimate `json:"microclimate"`
}

// StatusChangedEventData is the data payload for status transition events.
type StatusChangedEventData struct {
	MicroclimateID string        `json:"microclimate_id"`
	From           domain.Status `json:"from"`
	To             domain.Status `json:"to"`
	ChangedAt      time.Time     `json:"changed_at"`
}

// ResultsSnapshot is the viewer-facing projection of a session's live
// results. Stored counts become percentages here so clients render without
// further math or extra queries.
type ResultsSnapshot struct {
	MicroclimateID       string                       `json:"microclimate_id"`
	ResponseCount        int                          `json:"response_count"`
	ParticipationRate    float64                      `json:"participation_rate"`
	TimeRemainingSeconds int64                        `json:"time_remaining_seconds,omitempty"`
	EngagementLevel      domain.EngagementLevel       `json:"engagement_level"`
	OptionPercentages    map[string][]float64         `json:"option_percentages"`
	Sentiment            domain.SentimentDistribution `json:"sentiment"`
	SentimentScore       float64                      `json:"sentiment_score"`
	TopThemes            []string                     `json:"top_themes"`
	WordCloud            []domain.TermWeight          `json:"word_cloud"`
	UpdatedAt            time.Time                    `json:"updated_at"`
}

// NewResultsSnapshot projects a session's live results for viewers.
func NewResultsSnapshot(mc *domain.Microclimate) ResultsSnapshot {
	lr := mc.LiveResults
	if lr == nil {
		lr = domain.NewLiveResults()
	}

	percentages := make(map[string][]float64, len(lr.Distribution))
	for questionID := range lr.Distribution {
		percentages[questionID] = lr.OptionPercentages(questionID)
	}

	var remaining int64
	if !mc.Status.IsTerminal() {
		remaining = int64(mc.TimeRemaining(time.Now()).Seconds())
	}

	return ResultsSnapshot{
		MicroclimateID:       mc.ID,
		ResponseCount:        lr.ResponseCount,
		ParticipationRate:    lr.ParticipationRate,
		TimeRemainingSeconds: remaining,
		EngagementLevel:      lr.EngagementLevel,
		OptionPercentages:    percentages,
		Sentiment:            lr.SentimentDistribution(),
		SentimentScore:       lr.SentimentScore,
		TopThemes:            lr.TopThemes,
		WordCloud:            lr.WordCloud(),
		UpdatedAt:            lr.UpdatedAt,
	}
}

// InvitationEventData is the data payload for invitation events.
type InvitationEventData struct {
	Invitation *domain.Invitation `json:"invitation"`
}

// ReminderSentEventData is the data payload for reminder dispatch events.
type ReminderSentEventData struct {
	InvitationID   string    `json:"invitation_id"`
	MicroclimateID string    `json:"microclimate_id"`
	ParticipantID  string    `json:"participant_id"`
	ReminderCount  int       `json:"reminder_count"`
	SentAt         time.Time `json:"sent_at"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewMicroclimateCreatedEvent creates a microclimate.created event.
func NewMicroclimateCreatedEvent(mc *domain.Microclimate) Event {
	return Event{
		Type:      EventMicroclimateCreated,
		Data:      MicroclimateEventData{Microclimate: mc},
		CompanyID: mc.CompanyID,
		Timestamp: time.Now(),
	}
}

// NewMicroclimateUpdatedEvent creates a microclimate.updated event.
func NewMicroclimateUpdatedEvent(mc *domain.Microclimate) Event {
	return Event{
		Type:      EventMicroclimateUpdated,
		Data:      MicroclimateEventData{Microclimate: mc},
		CompanyID: mc.CompanyID,
		SessionID: mc.ID,
		Timestamp: time.Now(),
	}
}

// NewStatusChangedEvent creates a microclimate.status_changed event.
func NewStatusChangedEvent(mc *domain.Microclimate, from, to domain.Status, at time.Time) Event {
	return Event{
		Type: EventStatusChanged,
		Data: StatusChangedEventData{
			MicroclimateID: mc.ID,
			From:           from,
			To:             to,
			ChangedAt:      at,
		},
		CompanyID: mc.CompanyID,
		SessionID: mc.ID,
		Timestamp: time.Now(),
	}
}

// NewResultsUpdatedEvent creates a results.updated event carrying the
// current snapshot projection.
func NewResultsUpdatedEvent(mc *domain.Microclimate) Event {
	return Event{
		Type:      EventResultsUpdated,
		Data:      NewResultsSnapshot(mc),
		CompanyID: mc.CompanyID,
		SessionID: mc.ID,
		Timestamp: time.Now(),
	}
}

// NewInvitationUpdatedEvent creates an invitation.updated event for managers.
func NewInvitationUpdatedEvent(inv *domain.Invitation, companyID string) Event {
	return Event{
		Type:      EventInvitationUpdated,
		Data:      InvitationEventData{Invitation: inv},
		CompanyID: companyID,
		SessionID: inv.MicroclimateID,
		Timestamp: time.Now(),
	}
}

// NewReminderSentEvent creates a reminder.sent event for managers.
func NewReminderSentEvent(inv *domain.Invitation, companyID string, at time.Time) Event {
	return Event{
		Type: EventReminderSent,
		Data: ReminderSentEventData{
			InvitationID:   inv.ID,
			MicroclimateID: inv.MicroclimateID,
			ParticipantID:  inv.ParticipantID,
			ReminderCount:  inv.ReminderCount,
			SentAt:         at,
		},
		CompanyID: companyID,
		SessionID: inv.MicroclimateID,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
