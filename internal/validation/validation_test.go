package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/validation"
)

type TestRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Title    string `json:"title" validate:"required,max=200"`
	Duration int    `json:"duration_minutes" validate:"gt=0,lte=1440"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		Email:    "manager@example.com",
		Title:    "Sprint pulse",
		Duration: 30,
	}

	assert.NoError(t, v.Validate(req))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       TestRequest
		wantField string
	}{
		{
			name:      "missing required field",
			req:       TestRequest{Email: "manager@example.com", Duration: 30},
			wantField: "title",
		},
		{
			name:      "invalid email",
			req:       TestRequest{Email: "not-an-email", Title: "Pulse", Duration: 30},
			wantField: "email",
		},
		{
			name:      "zero duration",
			req:       TestRequest{Email: "manager@example.com", Title: "Pulse", Duration: 0},
			wantField: "duration_minutes",
		},
		{
			name:      "duration over a day",
			req:       TestRequest{Email: "manager@example.com", Title: "Pulse", Duration: 2000},
			wantField: "duration_minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var appErr *apperrors.Error
			if assert.True(t, errors.As(err, &appErr)) {
				assert.Equal(t, apperrors.CodeValidation, appErr.Code)
				assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())

				details, ok := appErr.Details.(map[string]string)
				if assert.True(t, ok) {
					assert.Contains(t, details, tt.wantField)
				}
			}
		})
	}
}
