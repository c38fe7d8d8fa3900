// Package search provides full-text search over microclimate sessions using
// Bleve. Managers use it to find past sessions by title, description, or
// question text, with status filtering and facet counts.
package search

import (
	"strings"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// SessionDocument is the document structure for the Bleve index.
//
// Question text is denormalized into one field so a search for a phrase a
// manager remembers asking finds the session without a second query.
type SessionDocument struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"` // Tenant boundary, every query filters on it
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Questions   string `json:"questions,omitempty"` // All question prompts joined

	// Numeric fields for range queries and sorting
	ResponseCount int `json:"response_count"`

	// Timestamps for sorting, unix millis
	StartTime int64 `json:"start_time"`
	CreatedAt int64 `json:"created_at"`
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *SessionDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":             d.ID,
		"company_id":     d.CompanyID,
		"title":          d.Title,
		"status":         d.Status,
		"response_count": d.ResponseCount,
		"start_time":     d.StartTime,
		"created_at":     d.CreatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Questions != "" {
		m["questions"] = d.Questions
	}

	return m
}

// MicroclimateToDocument converts a session to its search document.
func MicroclimateToDocument(mc *domain.Microclimate) *SessionDocument {
	prompts := make([]string, 0, len(mc.Questions))
	for _, q := range mc.Questions {
		prompts = append(prompts, q.Text)
	}

	return &SessionDocument{
		ID:            mc.ID,
		CompanyID:     mc.CompanyID,
		Title:         mc.Title,
		Description:   mc.Description,
		Status:        string(mc.Status),
		Questions:     strings.Join(prompts, " "),
		ResponseCount: mc.ResponseCount,
		StartTime:     mc.Scheduling.StartTime.UnixMilli(),
		CreatedAt:     mc.CreatedAt.UnixMilli(),
	}
}
