package api

import "github.com/pulsecheckapp/pulsecheck-server/internal/service"

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth         *service.AuthService
	Microclimate *service.MicroclimateService
	Invitation   *service.InvitationService
}
