package interfaces

import (
	"context"
	"errors"

	"github.com/google/wire"
	"gorm.io/gorm"

	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/infrastructure/cache"
	"physio-server/services/physio-api/internal/infrastructure/database"
	"physio-server/services/physio-api/internal/infrastructure/devicelink"
	"physio-server/services/physio-api/internal/interfaces/httpserver"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/routes"
)

var (
	errControllerDown = errors.New("device controller not connected")
	errJWKSNotReady   = errors.New("jwks not loaded")
)

// ProvideReadinessChecks lists the dependencies /readyz reports on. The
// controller link is reported but never fails readiness.
func ProvideReadinessChecks(db *gorm.DB, redisCache *cache.RedisCache, link devicelink.Link, external identity.ExternalVerifier) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck
	if db != nil {
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "database",
			Check: func(ctx context.Context) error {
				return database.Ping(db.WithContext(ctx))
			},
		})
	}
	if redisCache != nil {
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "redis",
			Check: redisCache.HealthCheck,
		})
	}
	if verifier, ok := external.(interface{ Ready() bool }); ok {
		checks = append(checks, httpserver.ReadinessCheck{
			Name:     "oidc_jwks",
			Optional: true,
			Check: func(context.Context) error {
				if verifier.Ready() {
					return nil
				}
				return errJWKSNotReady
			},
		})
	}
	if _, disabled := link.(devicelink.Disabled); !disabled {
		checks = append(checks, httpserver.ReadinessCheck{
			Name:     "controller",
			Optional: true,
			Check: func(context.Context) error {
				if link.Connected() {
					return nil
				}
				return errControllerDown
			},
		})
	}
	return checks
}

var InterfacesProvider = wire.NewSet(
	handlers.HandlerProvider,
	wire.Bind(new(auth.Authenticator), new(*identity.Service)),
	routes.RouteProvider,
	ProvideReadinessChecks,
	httpserver.NewHTTPServer,
)
