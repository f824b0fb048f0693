package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/services/physio-api/internal/domain/user"
)

const testSecret = "a-test-secret-that-is-long-enough-1234"

func TestJWTIssuerRoundTrip(t *testing.T) {
	issuer := NewJWTIssuer(testSecret, "physio-api", time.Hour)
	u := &user.User{ID: "user-1", Role: user.RoleDoctor}

	token, claims, err := issuer.Issue(u)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.TokenID)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, user.RoleDoctor, parsed.Role)
	assert.Equal(t, claims.TokenID, parsed.TokenID)
}

func TestJWTIssuerRejects(t *testing.T) {
	issuer := NewJWTIssuer(testSecret, "physio-api", time.Hour)
	token, _, err := issuer.Issue(&user.User{ID: "user-1", Role: user.RolePatient})
	require.NoError(t, err)

	tests := []struct {
		name   string
		parser *JWTIssuer
		token  string
	}{
		{name: "wrong secret", parser: NewJWTIssuer("another-secret-that-is-long-enough-xx", "physio-api", time.Hour), token: token},
		{name: "wrong issuer", parser: NewJWTIssuer(testSecret, "someone-else", time.Hour), token: token},
		{name: "garbage", parser: issuer, token: "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parser.Parse(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTIssuerExpiry(t *testing.T) {
	issuer := NewJWTIssuer(testSecret, "physio-api", time.Minute)
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }

	token, _, err := issuer.Issue(&user.User{ID: "user-1", Role: user.RolePatient})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4)
	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)

	assert.NoError(t, hasher.Compare(hash, "correct horse"))
	assert.Error(t, hasher.Compare(hash, "wrong horse"))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
