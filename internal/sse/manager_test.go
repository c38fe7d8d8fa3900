package sse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.DiscardHandler))
}

func connect(t *testing.T, m *Manager, userID, companyID, sessionID string, isManager bool) *Client {
	t.Helper()
	client, err := m.Connect(userID, companyID, sessionID, isManager)
	require.NoError(t, err)
	return client
}

func received(c *Client) []Event {
	var events []Event
	for {
		select {
		case evt := <-c.EventChan:
			events = append(events, evt)
		default:
			return events
		}
	}
}

func resultsEvent(companyID, sessionID string) Event {
	return Event{
		Type:      EventResultsUpdated,
		Timestamp: time.Now(),
		CompanyID: companyID,
		SessionID: sessionID,
	}
}

func TestManager_ConnectDisconnect(t *testing.T) {
	m := newTestManager()

	client := connect(t, m, "user-1", "acme", "", false)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	// Disconnecting twice is a no-op.
	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())
}

func TestManager_BroadcastFiltersByCompany(t *testing.T) {
	m := newTestManager()

	acme := connect(t, m, "user-1", "acme", "", false)
	globex := connect(t, m, "user-2", "globex", "", false)

	m.broadcast(resultsEvent("acme", "mc-1"))

	assert.Len(t, received(acme), 1)
	assert.Empty(t, received(globex))
}

func TestManager_BroadcastFiltersBySession(t *testing.T) {
	m := newTestManager()

	subscribed := connect(t, m, "user-1", "acme", "mc-1", false)
	elsewhere := connect(t, m, "user-2", "acme", "mc-2", false)
	all := connect(t, m, "user-3", "acme", "", false)

	m.broadcast(resultsEvent("acme", "mc-1"))

	assert.Len(t, received(subscribed), 1)
	assert.Empty(t, received(elsewhere))
	assert.Len(t, received(all), 1, "clients without a session filter receive everything")
}

func TestManager_InvitationEventsAreManagerOnly(t *testing.T) {
	m := newTestManager()

	manager := connect(t, m, "mgr-1", "acme", "", true)
	employee := connect(t, m, "emp-1", "acme", "", false)

	inv := &domain.Invitation{ID: "inv-1", MicroclimateID: "mc-1", ParticipantID: "emp-1"}
	m.broadcast(NewInvitationUpdatedEvent(inv, "acme"))

	got := received(manager)
	require.Len(t, got, 1)
	assert.Equal(t, EventInvitationUpdated, got[0].Type)
	assert.Empty(t, received(employee), "participant identities never reach regular viewers")
}

func TestManager_BroadcastFiltersByUser(t *testing.T) {
	m := newTestManager()

	target := connect(t, m, "user-1", "acme", "", false)
	other := connect(t, m, "user-2", "acme", "", false)

	evt := resultsEvent("acme", "")
	evt.UserID = "user-1"
	m.broadcast(evt)

	assert.Len(t, received(target), 1)
	assert.Empty(t, received(other))
}

func TestManager_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	m := newTestManager()

	slow := connect(t, m, "user-1", "acme", "", false)

	// Fill the client's buffer and then some. broadcast must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(slow.EventChan)+10; i++ {
			m.broadcast(resultsEvent("acme", ""))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}

	assert.Len(t, received(slow), cap(slow.EventChan))
}

func TestManager_EmitQueuesForBroadcast(t *testing.T) {
	m := newTestManager()

	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)

	client := connect(t, m, "user-1", "acme", "", false)

	m.Emit(resultsEvent("acme", ""))

	select {
	case evt := <-client.EventChan:
		assert.Equal(t, EventResultsUpdated, evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}

	cancel()
}

func TestManager_EmitAfterShutdownIsSilent(t *testing.T) {
	m := newTestManager()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	// Must not panic on the closed channel.
	m.Emit(resultsEvent("acme", ""))
}

func TestManager_EmitIgnoresForeignTypes(t *testing.T) {
	m := newTestManager()

	// Non-Event payloads are dropped, not panicked on.
	m.Emit("not an event")
	m.Emit(42)
}
