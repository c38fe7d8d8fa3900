package domain

import apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"

func errInvalidConfiguration(msg string) error {
	return apperrors.InvalidConfiguration(msg)
}
