package identity

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

var oidcNamespace = uuid.MustParse("6f1c9c3e-54c8-4f0e-9d0b-2b7d1f8e4a11")

// Service replaces the hosted auth provider: password accounts, external
// sign-in and token revocation.
type Service struct {
	profiles  Profiles
	tokens    TokenIssuer
	passwords PasswordHasher
	external  ExternalVerifier
	revoked   RevocationList
	sanitizer *telemetry.Sanitizer
	now       func() time.Time
	log       zerolog.Logger
}

// NewService builds the identity service. external may be nil when external
// sign-in is disabled.
func NewService(
	profiles Profiles,
	tokens TokenIssuer,
	passwords PasswordHasher,
	external ExternalVerifier,
	revoked RevocationList,
	sanitizer *telemetry.Sanitizer,
	log zerolog.Logger,
) *Service {
	return &Service{
		profiles:  profiles,
		tokens:    tokens,
		passwords: passwords,
		external:  external,
		revoked:   revoked,
		sanitizer: sanitizer,
		now:       time.Now,
		log:       log.With().Str("component", "identity-service").Logger(),
	}
}

// SignUp creates a password account with its profile and signs it in.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*Session, error) {
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "password must be at least 8 characters", nil, "")
	}
	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to hash password")
	}

	u, err := s.profiles.CreateProfile(ctx, user.CreateProfileInput{
		Email:          input.Email,
		FullName:       input.FullName,
		Role:           input.Role,
		LicenseNumber:  input.LicenseNumber,
		Specialization: input.Specialization,
		Age:            input.Age,
		Phone:          input.Phone,
		PasswordHash:   hash,
		AuthProvider:   user.AuthProviderPassword,
	})
	if err != nil {
		return nil, err
	}
	session, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	session.Created = true
	return session, nil
}

// SignIn verifies email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	invalid := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid email or password", nil, "")

	u, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			s.log.Info().Str("email", s.sanitizer.SanitizeEmail(email)).Msg("sign-in for unknown email")
			return nil, invalid
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, invalid
	}
	if err := s.passwords.Compare(u.PasswordHash, password); err != nil {
		s.log.Info().Str("user_id", u.ID).Msg("sign-in with wrong password")
		return nil, invalid
	}
	if !u.IsActive {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "account is disabled", nil, "")
	}
	return s.issue(ctx, u)
}

// SignInWithIDToken verifies an external identity token. Accounts seen for
// the first time get a default patient profile.
func (s *Service) SignInWithIDToken(ctx context.Context, idToken string) (*Session, error) {
	if s.external == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotImplemented, "external sign-in is not enabled", nil, "")
	}
	ext, err := s.external.Verify(ctx, idToken)
	if err != nil {
		s.log.Info().Err(err).Msg("external token rejected")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid identity token", err, "")
	}

	userID := uuid.NewSHA1(oidcNamespace, []byte(ext.Issuer+"|"+ext.Subject)).String()
	u, err := s.profiles.GetProfile(ctx, userID)
	if err == nil {
		return s.issue(ctx, u)
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, err
	}

	name := strings.TrimSpace(ext.Name)
	if name == "" {
		name = strings.Split(ext.Email, "@")[0]
	}
	u, err = s.profiles.CreateProfile(ctx, user.CreateProfileInput{
		ID:           userID,
		Email:        ext.Email,
		FullName:     name,
		Role:         user.RolePatient,
		AuthProvider: user.AuthProviderOIDC,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID).Msg("default patient profile created for external sign-in")

	session, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	session.Created = true
	return session, nil
}

// SignOut revokes the token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid token", err, "")
	}
	if err := s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to revoke token")
	}
	s.log.Info().Str("user_id", claims.UserID).Msg("signed out")
	return nil
}

// Authenticate validates a bearer token and returns its claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid token", err, "")
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to check token revocation")
	}
	if revoked {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "token has been revoked", nil, "")
	}
	return claims, nil
}

func (s *Service) issue(ctx context.Context, u *user.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to issue token")
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt, User: u}, nil
}
