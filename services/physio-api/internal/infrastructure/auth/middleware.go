package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "user_role"
	ContextKeyToken  = "auth_token"
)

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Claims, error)
}

// Middleware requires a valid session token. Browsers cannot set headers on
// WebSocket upgrades, so the token may also arrive as ?access_token=.
func Middleware(authenticator Authenticator, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = strings.TrimSpace(c.Query("access_token"))
		}
		if tokenString == "" {
			platformerrors.WriteUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			platformerrors.WriteUnauthorized(c, "invalid token")
			return
		}

		c.Set(ContextKeyToken, tokenString)
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, string(claims.Role))
		c.Next()
	}
}

// RequireRole rejects callers whose token carries another role.
func RequireRole(role user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentRole(c) != role {
			platformerrors.WriteForbidden(c, "this operation requires the "+string(role)+" role")
			return
		}
		c.Next()
	}
}

// DeviceKeyMiddleware guards the controller ingest endpoint with a shared key.
// An empty key disables the endpoint.
func DeviceKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			platformerrors.WriteForbidden(c, "device ingest is disabled")
			return
		}
		provided := c.GetHeader("X-Device-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			platformerrors.WriteUnauthorized(c, "invalid device key")
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// CurrentRole returns the authenticated user's role.
func CurrentRole(c *gin.Context) user.Role {
	return user.Role(c.GetString(ContextKeyRole))
}

// CurrentToken returns the raw bearer token.
func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
