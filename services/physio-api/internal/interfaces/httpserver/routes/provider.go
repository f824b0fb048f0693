package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	v1 "physio-server/services/physio-api/internal/interfaces/httpserver/routes/v1"
)

// Provider holds all route providers.
type Provider struct {
	V1 *v1.Routes
}

// NewProvider creates a new route provider.
func NewProvider(cfg *config.Config, handlerProvider *handlers.Provider, authenticator auth.Authenticator, log zerolog.Logger) *Provider {
	return &Provider{
		V1: v1.NewRoutes(handlerProvider, auth.Middleware(authenticator, log), auth.DeviceKeyMiddleware(cfg.DevicesAPIKey)),
	}
}

// Register registers all routes on the engine.
func (p *Provider) Register(engine *gin.Engine) {
	p.V1.Register(engine)
}

// RouteProvider provides the routes for wire.
var RouteProvider = wire.NewSet(NewProvider)
