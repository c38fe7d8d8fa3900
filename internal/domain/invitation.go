package domain

import "time"

// Reminder throttling limits.
const (
	MaxReminders     = 2
	ReminderInterval = 24 * time.Hour
)

// InvitationStatus is the delivery/engagement state of one participant's invite.
type InvitationStatus string

// Invitation statuses. The lattice is forward-only:
// pending -> sent -> opened -> started -> participated.
// expired is reachable from any non-terminal state once the deadline passes;
// bounced only from pending/sent, reported by the delivery collaborator.
const (
	InvitationPending      InvitationStatus = "pending"
	InvitationSent         InvitationStatus = "sent"
	InvitationOpened       InvitationStatus = "opened"
	InvitationStarted      InvitationStatus = "started"
	InvitationParticipated InvitationStatus = "participated"
	InvitationExpired      InvitationStatus = "expired"
	InvitationBounced      InvitationStatus = "bounced"
)

// invitationRank orders the forward lattice. Terminal side-states carry no rank.
var invitationRank = map[InvitationStatus]int{
	InvitationPending:      0,
	InvitationSent:         1,
	InvitationOpened:       2,
	InvitationStarted:      3,
	InvitationParticipated: 4,
}

// IsTerminal reports whether the invitation can never advance again.
func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationParticipated || s == InvitationExpired || s == InvitationBounced
}

// Invitation tracks one participant's path through a microclimate session.
// One invitation exists per (session, participant) pair; the store's unique
// index enforces that, not this type.
type Invitation struct {
	ID             string           `json:"id"`
	MicroclimateID string           `json:"microclimate_id"`
	ParticipantID  string           `json:"participant_id"`
	Status         InvitationStatus `json:"status"`

	SentAt         *time.Time `json:"sent_at,omitempty"`
	OpenedAt       *time.Time `json:"opened_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ParticipatedAt *time.Time `json:"participated_at,omitempty"`

	ReminderCount    int        `json:"reminder_count"`
	LastReminderSent *time.Time `json:"last_reminder_sent,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInvitation creates a pending invitation expiring at the given deadline.
func NewInvitation(id, microclimateID, participantID string, expiresAt, now time.Time) *Invitation {
	return &Invitation{
		ID:             id,
		MicroclimateID: microclimateID,
		ParticipantID:  participantID,
		Status:         InvitationPending,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// advance moves the invitation forward to target if it is currently at an
// earlier step. Returns false (a no-op, not an error) when the invitation is
// already at or past the target, or in a terminal side-state. Duplicate
// delivery webhooks therefore neither double count nor regress state.
func (inv *Invitation) advance(target InvitationStatus, now time.Time) bool {
	if inv.Status.IsTerminal() {
		return false
	}
	cur, ok := invitationRank[inv.Status]
	tgt, tok := invitationRank[target]
	if !ok || !tok || cur >= tgt {
		return false
	}
	inv.Status = target
	inv.UpdatedAt = now
	return true
}

// MarkSent records delivery. No-op if already past sent.
func (inv *Invitation) MarkSent(now time.Time) bool {
	if inv.advance(InvitationSent, now) {
		inv.SentAt = &now
		return true
	}
	return false
}

// MarkOpened records the participant opening the invite.
func (inv *Invitation) MarkOpened(now time.Time) bool {
	if inv.advance(InvitationOpened, now) {
		inv.OpenedAt = &now
		return true
	}
	return false
}

// MarkStarted records the participant beginning the question set.
func (inv *Invitation) MarkStarted(now time.Time) bool {
	if inv.advance(InvitationStarted, now) {
		inv.StartedAt = &now
		return true
	}
	return false
}

// MarkParticipated records a completed submission. Terminal.
func (inv *Invitation) MarkParticipated(now time.Time) bool {
	if inv.advance(InvitationParticipated, now) {
		inv.ParticipatedAt = &now
		return true
	}
	return false
}

// MarkBounced records a delivery failure. Only pending and sent invitations
// can bounce; anything the participant already engaged with stays put.
func (inv *Invitation) MarkBounced(now time.Time) bool {
	if inv.Status != InvitationPending && inv.Status != InvitationSent {
		return false
	}
	inv.Status = InvitationBounced
	inv.UpdatedAt = now
	return true
}

// Expire moves any non-terminal invitation to expired.
func (inv *Invitation) Expire(now time.Time) bool {
	if inv.Status.IsTerminal() {
		return false
	}
	inv.Status = InvitationExpired
	inv.UpdatedAt = now
	return true
}

// IsExpired reports whether the response deadline has passed.
func (inv *Invitation) IsExpired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// CanSendReminder reports whether a reminder may go out now.
// Throttling: at most MaxReminders total, at least ReminderInterval apart,
// never after participation, bounce, or expiry.
func (inv *Invitation) CanSendReminder(now time.Time) bool {
	if inv.Status.IsTerminal() {
		return false
	}
	if inv.ReminderCount >= MaxReminders {
		return false
	}
	if inv.IsExpired(now) {
		return false
	}
	if inv.LastReminderSent == nil {
		return true
	}
	return now.Sub(*inv.LastReminderSent) >= ReminderInterval
}

// SendReminder records a reminder dispatch. Callers must check
// CanSendReminder first; SendReminder only bookkeeps.
func (inv *Invitation) SendReminder(now time.Time) {
	inv.ReminderCount++
	inv.LastReminderSent = &now
	inv.UpdatedAt = now
}
