package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query. CompanyID is mandatory: every
// query is fenced to one tenant's sessions.
type SearchParams struct {
	Query     string // User's search query
	CompanyID string // Tenant scope, required

	// Filters
	Statuses    []string  // Filter by exact session statuses
	StartAfter  time.Time // Only sessions starting at or after this instant
	StartBefore time.Time // Only sessions starting before this instant

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "title", "recent", "start"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool // Include status facet counts in results
	Highlight     bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
	Facets Facets      `json:"facets,omitempty"`
}

// SearchHit represents a single matching session.
type SearchHit struct {
	ID            string            `json:"id"`
	Score         float64           `json:"score"`
	Title         string            `json:"title"`
	Status        string            `json:"status"`
	ResponseCount int               `json:"response_count"`
	StartTime     int64             `json:"start_time"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Facets contains facet counts.
type Facets struct {
	Statuses []FacetCount `json:"statuses,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SessionIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.CompanyID == "" {
		return nil, fmt.Errorf("search requires a company scope")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("status", bleve.NewFacetRequest("status", 10))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("title")
		searchRequest.Highlight.AddField("questions")
	}

	searchRequest.Fields = []string{
		"id", "title", "status", "response_count", "start_time",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if st, ok := hit.Fields["status"].(string); ok {
			searchHit.Status = st
		}
		if rc, ok := hit.Fields["response_count"].(float64); ok {
			searchHit.ResponseCount = int(rc)
		}
		if ts, ok := hit.Fields["start_time"].(float64); ok {
			searchHit.StartTime = int64(ts)
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		if statusFacet, ok := searchResult.Facets["status"]; ok {
			for _, term := range statusFacet.Terms.Terms() {
				result.Facets.Statuses = append(result.Facets.Statuses, FacetCount{
					Value: term.Term,
					Count: term.Count,
				})
			}
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Tenant fence first. Always a conjunct, never optional.
	companyQuery := bleve.NewTermQuery(params.CompanyID)
	companyQuery.SetField("company_id")
	queries = append(queries, companyQuery)

	// Main text query across title, description, and question prompts.
	if params.Query != "" {
		textQueries := []query.Query{}

		titleMatch := bleve.NewMatchQuery(params.Query)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)
		textQueries = append(textQueries, titleMatch)

		questionsMatch := bleve.NewMatchQuery(params.Query)
		questionsMatch.SetField("questions")
		questionsMatch.SetBoost(1.5)
		textQueries = append(textQueries, questionsMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		textQueries = append(textQueries, descMatch)

		// Fuzzy matching for typo tolerance on title
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("title")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("title")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Status filter (exact match, OR across statuses)
	if len(params.Statuses) > 0 {
		statusQueries := make([]query.Query, len(params.Statuses))
		for i, st := range params.Statuses {
			sq := bleve.NewTermQuery(st)
			sq.SetField("status")
			statusQueries[i] = sq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(statusQueries...))
	}

	// Start time range filter
	if !params.StartAfter.IsZero() || !params.StartBefore.IsZero() {
		min := float64(0)
		max := math.MaxFloat64
		if !params.StartAfter.IsZero() {
			min = float64(params.StartAfter.UnixMilli())
		}
		if !params.StartBefore.IsZero() {
			max = float64(params.StartBefore.UnixMilli())
		}
		rangeQuery := bleve.NewNumericRangeQuery(&min, &max)
		rangeQuery.SetField("start_time")
		queries = append(queries, rangeQuery)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	case "start":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"start_time"})
		} else {
			req.SortBy([]string{"-start_time"})
		}
	default:
		// Relevance (score) is default
		req.SortBy([]string{"-_score"})
	}
}
