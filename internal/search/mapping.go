package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for session documents.
//
// Priorities:
//  1. Full-text search on title/description/questions with English stemming
//  2. Exact keyword matching for company scoping and status filters
//  3. Numeric range queries on start time for date filtering
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Title - primary search target
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	// Description - searchable but not stored (can be long)
	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// Question prompts - searchable, highlighted
	questionsFieldMapping := bleve.NewTextFieldMapping()
	questionsFieldMapping.Analyzer = en.AnalyzerName
	questionsFieldMapping.Store = true
	questionsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("questions", questionsFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Company - tenant boundary, never analyzed
	companyFieldMapping := bleve.NewTextFieldMapping()
	companyFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("company_id", companyFieldMapping)

	// Status - for filtering and faceting
	statusFieldMapping := bleve.NewTextFieldMapping()
	statusFieldMapping.Analyzer = keyword.Name
	statusFieldMapping.Store = true
	statusFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("status", statusFieldMapping)

	// --- Numeric fields (range queries, sorting) ---

	responseCountFieldMapping := bleve.NewNumericFieldMapping()
	responseCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("response_count", responseCountFieldMapping)

	startTimeFieldMapping := bleve.NewNumericFieldMapping()
	startTimeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("start_time", startTimeFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
