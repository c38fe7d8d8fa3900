package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testScheduling(start time.Time, minutes int) Scheduling {
	return Scheduling{
		StartTime:       start,
		DurationMinutes: minutes,
		Timezone:        "UTC",
		AutoClose:       true,
	}
}

func TestResolveStatus_TimedWindow(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 30)

	tests := []struct {
		name    string
		now     time.Time
		current Status
		want    Status
	}{
		{"scheduled before window", start.Add(-time.Hour), StatusScheduled, StatusScheduled},
		{"scheduled enters window", start.Add(10 * time.Minute), StatusScheduled, StatusActive},
		{"scheduled past window", start.Add(time.Hour), StatusScheduled, StatusCompleted},
		{"draft before window", start.Add(-time.Hour), StatusDraft, StatusScheduled},
		{"draft inside window", start.Add(time.Minute), StatusDraft, StatusActive},
		{"draft past window", start.Add(2 * time.Hour), StatusDraft, StatusCompleted},
		{"active stays active", start.Add(15 * time.Minute), StatusActive, StatusActive},
		{"active completes", start.Add(31 * time.Minute), StatusActive, StatusCompleted},
		{"window start boundary is active", start, StatusScheduled, StatusActive},
		{"window end boundary is active", start.Add(30 * time.Minute), StatusActive, StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStatus(tt.now, sched, tt.current)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveStatus_NoIllegalTransitions(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 30)

	statuses := []Status{StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusCompleted, StatusCancelled}
	instants := map[string]time.Time{
		"before": start.Add(-time.Hour),
		"during": start.Add(10 * time.Minute),
		"after":  start.Add(time.Hour),
	}

	for _, current := range statuses {
		for label, now := range instants {
			got := ResolveStatus(now, sched, current)

			// The result is either unchanged or reachable in the table.
			if got != current {
				assert.True(t, legalTransitions[current][got],
					"illegal transition %s -> %s at %s", current, got, label)
			}

			// Active never regresses to scheduled, even if the clock moved back.
			if current == StatusActive {
				assert.NotEqual(t, StatusScheduled, got)
			}
		}
	}
}

func TestResolveStatus_ManualHoldsAreSticky(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 30)

	for _, held := range []Status{StatusPaused, StatusCancelled, StatusCompleted} {
		for _, now := range []time.Time{start.Add(-time.Hour), start.Add(time.Minute), start.Add(time.Hour)} {
			assert.Equal(t, held, ResolveStatus(now, sched, held),
				"%s must never be overridden by time", held)
		}
	}
}

func TestResolveStatus_Idempotent(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 30)

	statuses := []Status{StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusCompleted, StatusCancelled}
	instants := []time.Time{start.Add(-time.Hour), start, start.Add(10 * time.Minute), start.Add(time.Hour)}

	for _, current := range statuses {
		for _, now := range instants {
			once := ResolveStatus(now, sched, current)
			twice := ResolveStatus(now, sched, once)
			assert.Equal(t, once, twice, "resolve must be stable from %s at %s", current, now)
		}
	}
}

func TestResolveStatus_AutoCloseDoesNotHoldStatusOpen(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 30)
	sched.AutoClose = false

	// auto_close only gates late submissions; the status still completes.
	got := ResolveStatus(start.Add(time.Hour), sched, StatusActive)
	assert.Equal(t, StatusCompleted, got)
}

func TestScheduling_End(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	sched := testScheduling(start, 45)
	assert.Equal(t, start.Add(45*time.Minute), sched.End())
}

func TestMicroclimate_TimeRemaining(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	mc := NewMicroclimate("mc-1", "comp-1", "Pulse", "user-1", start)
	mc.Scheduling = testScheduling(start, 30)

	assert.Equal(t, 30*time.Minute, mc.TimeRemaining(start.Add(-time.Hour)))
	assert.Equal(t, 20*time.Minute, mc.TimeRemaining(start.Add(10*time.Minute)))
	assert.Equal(t, time.Duration(0), mc.TimeRemaining(start.Add(time.Hour)))
}

func TestMicroclimate_ValidateConfiguration(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	valid := NewMicroclimate("mc-1", "comp-1", "Pulse", "user-1", start)
	valid.Scheduling = testScheduling(start, 30)
	valid.Questions = []Question{
		{ID: "q1", Text: "How are we doing?", Type: QuestionLikert, Options: []string{"Bad", "OK", "Good"}},
	}
	assert.NoError(t, valid.ValidateConfiguration())

	tests := []struct {
		name   string
		mutate func(*Microclimate)
	}{
		{"zero duration", func(m *Microclimate) { m.Scheduling.DurationMinutes = 0 }},
		{"negative duration", func(m *Microclimate) { m.Scheduling.DurationMinutes = -10 }},
		{"missing start", func(m *Microclimate) { m.Scheduling.StartTime = time.Time{} }},
		{"no questions", func(m *Microclimate) { m.Questions = nil }},
		{"choice question without options", func(m *Microclimate) {
			m.Questions = []Question{{ID: "q1", Text: "Pick", Type: QuestionMultipleChoice}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := NewMicroclimate("mc-1", "comp-1", "Pulse", "user-1", start)
			mc.Scheduling = testScheduling(start, 30)
			mc.Questions = []Question{
				{ID: "q1", Text: "How are we doing?", Type: QuestionLikert, Options: []string{"Bad", "OK", "Good"}},
			}
			tt.mutate(mc)
			assert.Error(t, mc.ValidateConfiguration())
		})
	}
}

func TestMicroclimate_AcceptsResponses(t *testing.T) {
	mc := &Microclimate{}
	assert.True(t, mc.AcceptsResponses(StatusActive, false))
	assert.False(t, mc.AcceptsResponses(StatusPaused, false))
	assert.True(t, mc.AcceptsResponses(StatusPaused, true))
	assert.False(t, mc.AcceptsResponses(StatusScheduled, true))
	assert.False(t, mc.AcceptsResponses(StatusCompleted, true))
}
