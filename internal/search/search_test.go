package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/search"
)

func setupIndex(t *testing.T) *search.SessionIndex {
	t.Helper()

	idx, err := search.NewSessionIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testSession(id, companyID, title string, status domain.Status, start time.Time) *domain.Microclimate {
	mc := domain.NewMicroclimate(id, companyID, title, "user-1", start)
	mc.Status = status
	mc.Scheduling = domain.Scheduling{StartTime: start, DurationMinutes: 30, Timezone: "UTC"}
	mc.Questions = []domain.Question{
		{ID: "q1", Text: "How supported do you feel this sprint?", Type: domain.QuestionLikert,
			Options: []string{"Not at all", "Somewhat", "Fully"}},
	}
	return mc
}

func TestSessionIndex_SearchByTitle(t *testing.T) {
	idx := setupIndex(t)
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-1", "comp-1", "Sprint retrospective pulse", domain.StatusCompleted, start)))
	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-2", "comp-1", "Quarterly wellbeing check", domain.StatusCompleted, start)))

	params := search.DefaultSearchParams()
	params.Query = "retrospective"
	params.CompanyID = "comp-1"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mc-1", result.Hits[0].ID)
	assert.Equal(t, "Sprint retrospective pulse", result.Hits[0].Title)
}

func TestSessionIndex_SearchByQuestionText(t *testing.T) {
	idx := setupIndex(t)
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-1", "comp-1", "Weekly pulse", domain.StatusCompleted, start)))

	params := search.DefaultSearchParams()
	params.Query = "supported"
	params.CompanyID = "comp-1"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mc-1", result.Hits[0].ID)
}

func TestSessionIndex_CompanyFence(t *testing.T) {
	idx := setupIndex(t)
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-1", "comp-1", "Shared title pulse", domain.StatusActive, start)))
	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-2", "comp-2", "Shared title pulse", domain.StatusActive, start)))

	params := search.DefaultSearchParams()
	params.Query = "pulse"
	params.CompanyID = "comp-1"

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mc-1", result.Hits[0].ID)

	// Missing company scope is refused outright.
	params.CompanyID = ""
	_, err = idx.Search(context.Background(), params)
	require.Error(t, err)
}

func TestSessionIndex_StatusFilterAndFacets(t *testing.T) {
	idx := setupIndex(t)
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-1", "comp-1", "Morning pulse", domain.StatusActive, start)))
	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-2", "comp-1", "Evening pulse", domain.StatusCompleted, start)))
	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-3", "comp-1", "Midday pulse", domain.StatusCompleted, start)))

	params := search.DefaultSearchParams()
	params.CompanyID = "comp-1"
	params.Statuses = []string{"completed"}

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)

	require.NotEmpty(t, result.Facets.Statuses)
	assert.Equal(t, "completed", result.Facets.Statuses[0].Value)
	assert.Equal(t, 2, result.Facets.Statuses[0].Count)
}

func TestSessionIndex_StartTimeRange(t *testing.T) {
	idx := setupIndex(t)
	june := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-june", "comp-1", "June pulse", domain.StatusCompleted, june)))
	require.NoError(t, idx.IndexMicroclimate(context.Background(), testSession("mc-july", "comp-1", "July pulse", domain.StatusCompleted, july)))

	params := search.DefaultSearchParams()
	params.CompanyID = "comp-1"
	params.StartAfter = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mc-july", result.Hits[0].ID)
}

func TestSessionIndex_DeleteAndReindex(t *testing.T) {
	idx := setupIndex(t)
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mc := testSession("mc-1", "comp-1", "Disposable pulse", domain.StatusDraft, start)
	require.NoError(t, idx.IndexMicroclimate(context.Background(), mc))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, idx.DeleteMicroclimate(context.Background(), "mc-1"))

	count, err = idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	// Batch indexing restores them.
	require.NoError(t, idx.IndexMicroclimates([]*domain.Microclimate{
		testSession("mc-1", "comp-1", "First", domain.StatusDraft, start),
		testSession("mc-2", "comp-1", "Second", domain.StatusDraft, start),
	}))

	count, err = idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}
