package responses

import (
	"time"

	"physio-server/services/physio-api/internal/domain/identity"
)

// SessionResponse is returned by the sign-in endpoints.
type SessionResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	ExpiresAt time.Time     `json:"expires_at"`
	Created   bool          `json:"created"`
	User      *UserResponse `json:"user"`
}

func NewSessionResponse(sess *identity.Session) *SessionResponse {
	return &SessionResponse{
		Token:     sess.Token,
		TokenType: "Bearer",
		ExpiresAt: sess.ExpiresAt,
		Created:   sess.Created,
		User:      NewUserResponse(sess.User),
	}
}
