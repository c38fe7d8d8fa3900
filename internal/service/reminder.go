package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsecheckapp/pulsecheck-server/internal/clock"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/sse"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
)

// ReminderWorker periodically sweeps invitations: it dispatches pending
// invites, expires invitations whose deadline passed, and nudges
// non-responders within the reminder throttle (at most two reminders,
// at least a day apart).
type ReminderWorker struct {
	store    *store.Store
	events   store.EventEmitter
	delivery Delivery
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
}

// NewReminderWorker creates the sweep worker. interval controls how often
// the sweep runs; the reminder throttle itself lives on the invitation.
func NewReminderWorker(st *store.Store, events store.EventEmitter, delivery Delivery, clk clock.Clock, logger *slog.Logger, interval time.Duration) *ReminderWorker {
	if events == nil {
		events = store.NoopEmitter{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWorker{
		store:    st,
		events:   events,
		delivery: delivery,
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (w *ReminderWorker) Run(ctx context.Context) {
	w.logger.Info("reminder worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Warn("reminder sweep failed", "error", err)
			}
		}
	}
}

// Sweep walks every invitation once. Each invitation is handled
// independently; one failure never aborts the rest of the sweep.
func (w *ReminderWorker) Sweep(ctx context.Context) error {
	now := w.clock.Now()
	sessions := make(map[string]*sessionState)

	for inv, err := range w.store.Invitations.List(ctx) {
		if err != nil {
			return err
		}
		if inv.Status.IsTerminal() {
			continue
		}

		if inv.IsExpired(now) {
			w.expire(ctx, inv, now, sessions)
			continue
		}

		state := w.sessionFor(ctx, inv.MicroclimateID, now, sessions)
		if state == nil || state.mc == nil {
			continue
		}

		switch {
		case inv.Status == domain.InvitationPending && state.status != domain.StatusCompleted && state.status != domain.StatusCancelled:
			w.dispatch(ctx, inv, state.mc, now)
		case inv.Status != domain.InvitationPending && state.status == domain.StatusActive && inv.CanSendReminder(now):
			w.remind(ctx, inv, state.mc, now)
		}
	}
	return nil
}

// sessionState caches one session's record and resolved status for a sweep.
type sessionState struct {
	mc     *domain.Microclimate
	status domain.Status
}

func (w *ReminderWorker) sessionFor(ctx context.Context, mcID string, now time.Time, cache map[string]*sessionState) *sessionState {
	if state, ok := cache[mcID]; ok {
		return state
	}

	state := &sessionState{}
	mc, err := w.store.GetMicroclimate(ctx, mcID)
	if err != nil {
		// Orphaned invitation, likely a deleted session. Leave it for expiry.
		w.logger.Warn("invitation references missing session",
			"microclimate_id", mcID, "error", err)
	} else {
		state.mc = mc
		state.status = domain.ResolveStatus(now, mc.Scheduling, mc.Status)
	}
	cache[mcID] = state
	return state
}

// expire moves a past-deadline invitation to expired.
func (w *ReminderWorker) expire(ctx context.Context, inv *domain.Invitation, now time.Time, cache map[string]*sessionState) {
	expired := false
	updated, err := w.store.MutateInvitation(ctx, inv.ID,
		func(*domain.Invitation) bool { return true },
		func(cur *domain.Invitation) {
			expired = cur.Expire(now)
		})
	if err != nil {
		w.logger.Warn("failed to expire invitation", "invitation_id", inv.ID, "error", err)
		return
	}
	if !expired {
		return
	}

	companyID := ""
	if state := w.sessionFor(ctx, inv.MicroclimateID, now, cache); state != nil && state.mc != nil {
		companyID = state.mc.CompanyID
	}
	w.events.Emit(sse.NewInvitationUpdatedEvent(updated, companyID))
	w.logger.Debug("invitation expired", "invitation_id", inv.ID)
}

// dispatch sends the initial invite and marks it sent. Delivery runs before
// the mark so a send failure retries on the next sweep.
func (w *ReminderWorker) dispatch(ctx context.Context, inv *domain.Invitation, mc *domain.Microclimate, now time.Time) {
	if err := w.delivery.SendInvitation(ctx, inv, mc); err != nil {
		w.logger.Warn("invitation delivery failed",
			"invitation_id", inv.ID, "error", err)
		return
	}

	sent := false
	updated, err := w.store.MutateInvitation(ctx, inv.ID,
		func(*domain.Invitation) bool { return true },
		func(cur *domain.Invitation) {
			sent = cur.MarkSent(now)
		})
	if err != nil {
		w.logger.Warn("failed to mark invitation sent", "invitation_id", inv.ID, "error", err)
		return
	}
	if sent {
		w.events.Emit(sse.NewInvitationUpdatedEvent(updated, mc.CompanyID))
	}
}

// remind sends one throttled reminder. The throttle check re-runs inside the
// store mutation so two overlapping sweeps cannot double-send bookkeeping.
func (w *ReminderWorker) remind(ctx context.Context, inv *domain.Invitation, mc *domain.Microclimate, now time.Time) {
	if err := w.delivery.SendReminder(ctx, inv, mc); err != nil {
		w.logger.Warn("reminder delivery failed",
			"invitation_id", inv.ID, "error", err)
		return
	}

	recorded := false
	updated, err := w.store.MutateInvitation(ctx, inv.ID,
		func(*domain.Invitation) bool { return true },
		func(cur *domain.Invitation) {
			if cur.CanSendReminder(now) {
				cur.SendReminder(now)
				recorded = true
			}
		})
	if err != nil {
		w.logger.Warn("failed to record reminder", "invitation_id", inv.ID, "error", err)
		return
	}
	if !recorded {
		return
	}

	w.events.Emit(sse.NewReminderSentEvent(updated, mc.CompanyID, now))
	w.logger.Info("reminder sent",
		"invitation_id", updated.ID,
		"microclimate_id", mc.ID,
		"reminder_count", updated.ReminderCount,
	)
}
