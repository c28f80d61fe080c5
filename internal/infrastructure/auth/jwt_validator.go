package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// PrincipalClaims represent the subset of JWT claims we care about.
type PrincipalClaims struct {
	Subject           string
	Issuer            string
	Audience          []string
	PreferredUsername string
	Email             string
	Scopes            []string
	ExpiresAt         time.Time
}

// JWTValidator validates bearer tokens against a JWKS endpoint.
type JWTValidator struct {
	issuer       string
	audience     string
	jwksURL      string
	refreshEvery time.Duration
	clockSkew    time.Duration
	logger       zerolog.Logger
	jwks         atomic.Pointer[keyfunc.JWKS]
	lastErr      atomic.Value // stores lastErrWrap
}

// lastErrWrap avoids storing a bare nil in atomic.Value.
type lastErrWrap struct{ Err error }

const (
	jwksInitialRetryInterval   = time.Second
	jwksInitialRetryMaxBackoff = 10 * time.Second
	jwksInitialRetryTimeout    = 2 * time.Minute
)

// NewJWTValidator fetches the key set once, retrying with backoff, and keeps it refreshed in the
// background until ctx is done.
func NewJWTValidator(
	ctx context.Context,
	jwksURL,
	issuer,
	audience string,
	refreshEvery,
	clockSkew time.Duration,
	logger zerolog.Logger,
) (*JWTValidator, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	v := &JWTValidator{
		issuer:       issuer,
		audience:     audience,
		jwksURL:      jwksURL,
		refreshEvery: refreshEvery,
		clockSkew:    clockSkew,
		logger:       logger.With().Str("component", "jwt-validator").Logger(),
	}
	v.lastErr.Store(lastErrWrap{})

	if err := v.initJWKS(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *JWTValidator) initJWKS(ctx context.Context) error {
	options := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			v.lastErr.Store(lastErrWrap{Err: err})
			if err != nil {
				v.logger.Error().Err(err).Msg("jwks refresh failed")
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

		v.logger.Warn().
			Err(err).
			Str("jwks_url", v.jwksURL).
			Int("attempt", attempt).
			Msg("initial jwks fetch failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch jwks: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("fetch jwks: %w", err)
		}
		backoff = min(backoff*2, jwksInitialRetryMaxBackoff)
	}
}

// Validate parses and verifies rawToken and returns its principal claims.
func (v *JWTValidator) Validate(_ context.Context, rawToken string) (*PrincipalClaims, error) {
	jwks := v.jwks.Load()
	if jwks == nil {
		return nil, errors.New("jwks not initialised")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(rawToken, claims, jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("sub claim missing")
	}
	iss, _ := claims.GetIssuer()
	aud, _ := claims.GetAudience()

	out := &PrincipalClaims{
		Subject:           sub,
		Issuer:            iss,
		Audience:          aud,
		PreferredUsername: claimString(claims["preferred_username"]),
		Email:             claimString(claims["email"]),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	if scope := claimString(claims["scope"]); scope != "" {
		out.Scopes = strings.Fields(scope)
	}
	return out, nil
}

// Ready reports whether the key set is loaded and the last refresh succeeded.
func (v *JWTValidator) Ready() bool {
	if v.jwks.Load() == nil {
		return false
	}
	if wrap, ok := v.lastErr.Load().(lastErrWrap); ok && wrap.Err != nil {
		return false
	}
	return true
}

// Close stops the background refresh.
func (v *JWTValidator) Close() {
	if jwks := v.jwks.Load(); jwks != nil {
		jwks.EndBackground()
	}
}

func claimString(value any) string {
	if str, ok := value.(string); ok {
		return str
	}
	return ""
}
