package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/user"
)

// sessionClaims is the payload of tokens minted by this service.
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer mints HS256 session tokens.
type JWTIssuer struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

var _ identity.TokenIssuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret, issuer string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{
		secret:    []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		clockSkew: 30 * time.Second,
		now:       time.Now,
	}
}

func (i *JWTIssuer) Issue(u *user.User) (string, identity.Claims, error) {
	now := i.now().UTC()
	expires := now.Add(i.ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    i.issuer,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", identity.Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, identity.Claims{
		UserID:    u.ID,
		Role:      u.Role,
		TokenID:   tokenID,
		ExpiresAt: expires,
	}, nil
}

func (i *JWTIssuer) Parse(raw string) (*identity.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.clockSkew),
		jwt.WithTimeFunc(i.now),
	)

	var claims sessionClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	role, ok := user.ParseRole(claims.Role)
	if !ok {
		return nil, errors.New("role claim missing")
	}
	if claims.Subject == "" {
		return nil, errors.New("sub claim missing")
	}
	return &identity.Claims{
		UserID:    claims.Subject,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
