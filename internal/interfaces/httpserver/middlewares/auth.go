package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/session-api/internal/domain"
	authvalidator "jan-server/services/session-api/internal/infrastructure/auth"
	"jan-server/services/session-api/internal/interfaces/httpserver/responses"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const principalContextKey = "principal"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*authvalidator.PrincipalClaims, error)
}

// AuthMiddleware resolves the caller principal. With a validator it requires a bearer JWT;
// without one it trusts devHeader, which must only happen behind a trusted gateway or locally.
func AuthMiddleware(validator TokenValidator, devHeader string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			principal domain.Principal
			ok        bool
		)
		if validator != nil {
			principal, ok = principalFromJWT(c, validator, logger)
		} else {
			principal, ok = principalFromHeader(c, devHeader)
		}
		if !ok {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "5e0a4c39-2a0f-4a51-b1a3-6ec1c1f8cf55")
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := val.(domain.Principal)
	return principal, ok
}

func setPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalContextKey, principal)
	c.Set("user_id", principal.ID)
	c.Writer.Header().Set("X-Auth-Method", string(principal.AuthMethod))
}

func principalFromJWT(c *gin.Context, validator TokenValidator, logger zerolog.Logger) (domain.Principal, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return domain.Principal{}, false
	}
	token := strings.TrimSpace(header[7:])
	if token == "" {
		return domain.Principal{}, false
	}

	claims, err := validator.Validate(c.Request.Context(), token)
	if err != nil {
		logger.Warn().Err(err).Str("request_id", RequestIDFromContext(c)).Msg("jwt validation failed")
		return domain.Principal{}, false
	}
	return domain.Principal{
		ID:         claims.Subject,
		AuthMethod: domain.AuthMethodJWT,
		Subject:    claims.Subject,
		Issuer:     claims.Issuer,
		Username:   claims.PreferredUsername,
		Email:      claims.Email,
		Scopes:     claims.Scopes,
	}, true
}

func principalFromHeader(c *gin.Context, header string) (domain.Principal, bool) {
	if header == "" {
		return domain.Principal{}, false
	}
	id := strings.TrimSpace(c.GetHeader(header))
	if id == "" {
		return domain.Principal{}, false
	}
	return domain.Principal{
		ID:         id,
		AuthMethod: domain.AuthMethodDevHeader,
		Subject:    id,
	}, true
}
