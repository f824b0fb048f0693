package handlers

import (
	"context"

	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

// AuthHandler handles account and session requests.
type AuthHandler struct {
	identity *identity.Service
}

func NewAuthHandler(identityService *identity.Service) *AuthHandler {
	return &AuthHandler{identity: identityService}
}

func (h *AuthHandler) SignUp(ctx context.Context, req requests.SignUpRequest) (*responses.SessionResponse, error) {
	sess, err := h.identity.SignUp(ctx, identity.SignUpInput{
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Role:           user.Role(req.Role),
		LicenseNumber:  req.LicenseNumber,
		Specialization: req.Specialization,
		Age:            req.Age,
		Phone:          req.Phone,
	})
	if err != nil {
		return nil, err
	}
	return responses.NewSessionResponse(sess), nil
}

func (h *AuthHandler) SignIn(ctx context.Context, req requests.SignInRequest) (*responses.SessionResponse, error) {
	sess, err := h.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return responses.NewSessionResponse(sess), nil
}

func (h *AuthHandler) SignInWithIDToken(ctx context.Context, req requests.OIDCSignInRequest) (*responses.SessionResponse, error) {
	sess, err := h.identity.SignInWithIDToken(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	return responses.NewSessionResponse(sess), nil
}

func (h *AuthHandler) SignOut(ctx context.Context, token string) error {
	return h.identity.SignOut(ctx, token)
}
