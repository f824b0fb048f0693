package v1

import (
	"github.com/gin-gonic/gin"

	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
)

// Routes holds the v1 route configuration.
type Routes struct {
	auth    *AuthRoute
	users   *UserRoute
	chat    *ChatRoute
	devices *DeviceRoute
}

// NewRoutes builds the v1 routes. requireAuth guards everything except
// sign-up, sign-in and the controller ingest, which deviceKey guards.
func NewRoutes(h *handlers.Provider, requireAuth, deviceKey gin.HandlerFunc) *Routes {
	return &Routes{
		auth:    NewAuthRoute(h.Auth, requireAuth),
		users:   NewUserRoute(h.User),
		chat:    NewChatRoute(h.Chat, h.Stream),
		devices: NewDeviceRoute(h.Device, h.Stream, deviceKey),
	}
}

// Register registers all v1 routes on the engine.
func (r *Routes) Register(engine *gin.Engine) {
	v1 := engine.Group("/v1")

	r.auth.RegisterPublic(v1)
	r.devices.RegisterIngest(v1)

	authed := v1.Group("", r.auth.requireAuth)
	r.auth.RegisterRouter(authed)
	r.users.RegisterRouter(authed)
	r.chat.RegisterRouter(authed)
	r.devices.RegisterRouter(authed)
}
