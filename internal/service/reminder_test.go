package service_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

// capturingDelivery records every dispatch for assertions.
type capturingDelivery struct {
	mu          sync.Mutex
	invitations []string
	reminders   []string
}

func (d *capturingDelivery) SendInvitation(_ context.Context, inv *domain.Invitation, _ *domain.Microclimate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invitations = append(d.invitations, inv.ParticipantID)
	return nil
}

func (d *capturingDelivery) SendReminder(_ context.Context, inv *domain.Invitation, _ *domain.Microclimate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reminders = append(d.reminders, inv.ParticipantID)
	return nil
}

func (d *capturingDelivery) reminderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reminders)
}

func setupWorker(t *testing.T) (*testEnv, *capturingDelivery, *service.ReminderWorker) {
	t.Helper()
	env := setupEnv(t)
	delivery := &capturingDelivery{}
	worker := service.NewReminderWorker(env.store, nil, delivery, env.clock, slog.New(slog.DiscardHandler), time.Minute)
	return env, delivery, worker
}

func TestSweep_DispatchesPendingInvitations(t *testing.T) {
	env, delivery, worker := setupWorker(t)
	mc := createActive(t, env, func(req *service.CreateMicroclimateRequest) {
		req.ParticipantIDs = []string{"emp-1", "emp-2"}
	})

	require.NoError(t, worker.Sweep(context.Background()))
	assert.ElementsMatch(t, []string{"emp-1", "emp-2"}, delivery.invitations)

	invs, err := env.store.ListInvitationsBySession(context.Background(), mc.ID)
	require.NoError(t, err)
	for _, inv := range invs {
		assert.Equal(t, domain.InvitationSent, inv.Status)
		assert.NotNil(t, inv.SentAt)
	}

	// A second sweep finds nothing pending.
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Len(t, delivery.invitations, 2)
}

func TestSweep_ReminderThrottle(t *testing.T) {
	env, delivery, worker := setupWorker(t)
	mc := createActive(t, env, func(req *service.CreateMicroclimateRequest) {
		// Keep the window open for days so the throttle, not expiry,
		// is what limits reminders.
		req.DurationMinutes = 5 * 24 * 60
		req.ParticipantIDs = []string{"emp-1"}
	})

	// First sweep dispatches the invite; reminders only go to invitations
	// that are already sent.
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Equal(t, 0, delivery.reminderCount())

	// Second sweep: first reminder.
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Equal(t, 1, delivery.reminderCount())

	// Too soon for another.
	env.clock.Advance(23 * time.Hour)
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Equal(t, 1, delivery.reminderCount())

	// A full day since the first: second and last reminder.
	env.clock.Advance(time.Hour)
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Equal(t, 2, delivery.reminderCount())

	// The cap holds no matter how long we wait.
	env.clock.Advance(48 * time.Hour)
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Equal(t, 2, delivery.reminderCount())

	inv, err := env.store.GetInvitationByParticipant(context.Background(), mc.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxReminders, inv.ReminderCount)
}

func TestSweep_NoRemindersOutsideActiveWindow(t *testing.T) {
	env, delivery, worker := setupWorker(t)
	createActive(t, env, func(req *service.CreateMicroclimateRequest) {
		req.StartTime = env.clock.Now().Add(time.Hour)
		req.ParticipantIDs = []string{"emp-1"}
	})

	// Invite goes out ahead of the start, but nobody gets nagged about a
	// session that has not opened yet.
	require.NoError(t, worker.Sweep(context.Background()))
	require.NoError(t, worker.Sweep(context.Background()))
	assert.Len(t, delivery.invitations, 1)
	assert.Equal(t, 0, delivery.reminderCount())
}

func TestSweep_ExpiresPastDeadline(t *testing.T) {
	env, delivery, worker := setupWorker(t)
	mc := createActive(t, env, func(req *service.CreateMicroclimateRequest) {
		req.ParticipantIDs = []string{"emp-1"}
	})

	env.clock.Advance(2 * time.Hour)

	require.NoError(t, worker.Sweep(context.Background()))
	assert.Empty(t, delivery.invitations)
	assert.Equal(t, 0, delivery.reminderCount())

	inv, err := env.store.GetInvitationByParticipant(context.Background(), mc.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationExpired, inv.Status)
}

func TestSweep_ParticipatedLeftAlone(t *testing.T) {
	env, delivery, worker := setupWorker(t)
	mc := createActive(t, env, func(req *service.CreateMicroclimateRequest) {
		req.ParticipantIDs = []string{"emp-1"}
	})

	_, err := env.svc.SubmitResponse(context.Background(), mc.ID, "emp-1", submitFor(mc, "done"))
	require.NoError(t, err)

	require.NoError(t, worker.Sweep(context.Background()))
	assert.Empty(t, delivery.invitations)
	assert.Equal(t, 0, delivery.reminderCount())

	inv, err := env.store.GetInvitationByParticipant(context.Background(), mc.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationParticipated, inv.Status)
}
