package identity

import (
	"context"
	"time"

	"physio-server/services/physio-api/internal/domain/user"
)

const minPasswordLength = 8

// Claims are the facts carried by a session token.
type Claims struct {
	UserID    string
	Role      user.Role
	TokenID   string
	ExpiresAt time.Time
}

// Session is returned after a successful sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
	Created   bool
}

// ExternalIdentity is what an external identity provider vouches for.
type ExternalIdentity struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// SignUpInput carries the account and profile fields.
type SignUpInput struct {
	Email          string
	Password       string
	FullName       string
	Role           user.Role
	LicenseNumber  string
	Specialization string
	Age            int
	Phone          string
}

// TokenIssuer mints and verifies session tokens.
type TokenIssuer interface {
	Issue(u *user.User) (token string, claims Claims, err error)
	Parse(token string) (*Claims, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// ExternalVerifier verifies identity tokens from an external provider.
type ExternalVerifier interface {
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

// RevocationList remembers signed-out tokens until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Profiles is the subset of the profile service identity relies on.
type Profiles interface {
	CreateProfile(ctx context.Context, input user.CreateProfileInput) (*user.User, error)
	GetProfile(ctx context.Context, id string) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}
