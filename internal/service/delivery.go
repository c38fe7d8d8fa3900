package service

import (
	"context"
	"log/slog"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// Delivery sends invitations and reminders to participants. The server does
// not speak email or chat protocols itself; deployments plug in whatever
// channel their company uses. Implementations must be safe for concurrent
// use.
type Delivery interface {
	// SendInvitation delivers the initial invite for a session.
	SendInvitation(ctx context.Context, inv *domain.Invitation, mc *domain.Microclimate) error
	// SendReminder nudges a participant who has not responded yet.
	SendReminder(ctx context.Context, inv *domain.Invitation, mc *domain.Microclimate) error
}

// LogDelivery is the default Delivery: it records the dispatch and does
// nothing else. Useful for development and for deployments that drive
// delivery from the event stream instead.
type LogDelivery struct {
	logger *slog.Logger
}

// NewLogDelivery creates a log-only delivery channel.
func NewLogDelivery(logger *slog.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

// SendInvitation logs the invite.
func (d *LogDelivery) SendInvitation(_ context.Context, inv *domain.Invitation, mc *domain.Microclimate) error {
	d.logger.Info("invitation dispatched",
		"invitation_id", inv.ID,
		"microclimate_id", mc.ID,
		"participant_id", inv.ParticipantID,
	)
	return nil
}

// SendReminder logs the reminder.
func (d *LogDelivery) SendReminder(_ context.Context, inv *domain.Invitation, mc *domain.Microclimate) error {
	d.logger.Info("reminder dispatched",
		"invitation_id", inv.ID,
		"microclimate_id", mc.ID,
		"participant_id", inv.ParticipantID,
		"reminder_count", inv.ReminderCount,
	)
	return nil
}
