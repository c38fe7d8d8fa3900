package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Envelope is the uniform JSON response shape every endpoint returns.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// EnvelopeTransformer wraps every response body in the Envelope. Errors keep
// their code and details; 204s stay empty.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		return Envelope{Success: false, Error: apiErr}, nil
	}

	return Envelope{Success: strings.HasPrefix(status, "2"), Data: v}, nil
}
