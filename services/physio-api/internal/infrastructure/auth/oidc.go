package auth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/identity"
)

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 2 * time.Minute
)

// OIDCVerifier validates ID tokens from an external provider against its JWKS.
type OIDCVerifier struct {
	issuer       string
	audience     string
	jwksURL      string
	refreshEvery time.Duration
	clockSkew    time.Duration
	log          zerolog.Logger
	jwks         atomic.Pointer[keyfunc.JWKS]
	lastErr      atomic.Value // stores lastErrWrap
}

// lastErrWrap avoids storing a bare nil in atomic.Value.
type lastErrWrap struct{ Err error }

var _ identity.ExternalVerifier = (*OIDCVerifier)(nil)

func NewOIDCVerifier(ctx context.Context, jwksURL, issuer, audience string, refreshEvery time.Duration, log zerolog.Logger) (*OIDCVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	v := &OIDCVerifier{
		issuer:       issuer,
		audience:     audience,
		jwksURL:      jwksURL,
		refreshEvery: refreshEvery,
		clockSkew:    time.Minute,
		log:          log.With().Str("component", "oidc-verifier").Logger(),
	}
	v.lastErr.Store(lastErrWrap{})
	if err := v.initJWKS(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *OIDCVerifier) initJWKS(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(lastErrWrap{Err: err})
			if err != nil {
				v.log.Error().Err(err).Msg("jwks refresh failed")
			}
		},
		RefreshInterval:   v.refreshEvery,
		RefreshUnknownKID: true,
	}

	backoff := jwksInitialRetryInterval
	deadline := time.Now().Add(jwksInitialRetryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for attempt := 1; ; attempt++ {
		jwks, err := keyfunc.Get(v.jwksURL, options)
		if err == nil {
			v.lastErr.Store(lastErrWrap{})
			v.jwks.Store(jwks)
			return nil
		}

		v.log.Warn().Err(err).Str("jwks_url", v.jwksURL).Int("attempt", attempt).Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		if next := backoff * 2; next <= jwksInitialRetryMaxBackoff {
			backoff = next
		} else {
			backoff = jwksInitialRetryMaxBackoff
		}
	}
}

// Verify checks signature, issuer, audience and lifetime of idToken.
func (v *OIDCVerifier) Verify(_ context.Context, idToken string) (*identity.ExternalIdentity, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	mapClaims := jwt.MapClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(idToken, mapClaims, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}
	email, _ := mapClaims["email"].(string)
	if email == "" {
		return nil, errors.New("email claim missing")
	}
	verified, _ := mapClaims["email_verified"].(bool)
	name, _ := mapClaims["name"].(string)
	iss, _ := mapClaims["iss"].(string)

	return &identity.ExternalIdentity{
		Issuer:        iss,
		Subject:       sub,
		Email:         email,
		EmailVerified: verified,
		Name:          name,
	}, nil
}

// Ready reports whether the JWKS is loaded and the last refresh succeeded.
func (v *OIDCVerifier) Ready() bool {
	if v.jwks.Load() == nil {
		return false
	}
	if wrap, ok := v.lastErr.Load().(lastErrWrap); ok && wrap.Err != nil {
		return false
	}
	return true
}

// Close stops the background refresh.
func (v *OIDCVerifier) Close() {
	if jwks := v.jwks.Load(); jwks != nil {
		jwks.EndBackground()
	}
}
