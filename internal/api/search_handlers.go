package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/search/sessions",
		Summary:     "Search sessions",
		Description: "Full-text search across the caller's company sessions",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchSessions)
}

// SearchSessionsInput contains search query parameters.
type SearchSessionsInput struct {
	Query       string    `query:"q" doc:"Search query text"`
	Statuses    []string  `query:"status" doc:"Filter by session status (repeatable)"`
	StartAfter  time.Time `query:"start_after" doc:"Only sessions starting at or after this instant"`
	StartBefore time.Time `query:"start_before" doc:"Only sessions starting before this instant"`
	Limit       int       `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Maximum results to return"`
	Offset      int       `query:"offset" minimum:"0" default:"0" doc:"Results to skip for pagination"`
	SortBy      string    `query:"sort" enum:"relevance,title,recent,start" default:"relevance" doc:"Sort order"`
	SortOrder   string    `query:"order" enum:"asc,desc" default:"desc" doc:"Sort direction"`
}

// SearchSessionsOutput wraps search results for Huma.
type SearchSessionsOutput struct {
	Body *search.SearchResult
}

func (s *Server) handleSearchSessions(ctx context.Context, input *SearchSessionsInput) (*SearchSessionsOutput, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}

	if s.searchIndex == nil {
		return nil, huma.Error503ServiceUnavailable("Search is not available")
	}

	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.CompanyID = claims.CompanyID
	params.Statuses = input.Statuses
	params.StartAfter = input.StartAfter
	params.StartBefore = input.StartBefore
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset
	if input.SortBy != "" {
		params.SortBy = input.SortBy
	}
	if input.SortOrder != "" {
		params.SortOrder = input.SortOrder
	}

	result, err := s.searchIndex.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	return &SearchSessionsOutput{Body: result}, nil
}
