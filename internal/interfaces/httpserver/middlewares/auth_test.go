package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"jan-server/services/session-api/internal/domain"
	authvalidator "jan-server/services/session-api/internal/infrastructure/auth"
)

type stubValidator struct {
	subject string
}

func (s stubValidator) Validate(_ context.Context, raw string) (*authvalidator.PrincipalClaims, error) {
	if raw != "good-token" {
		return nil, errors.New("bad token")
	}
	return &authvalidator.PrincipalClaims{Subject: s.subject, Scopes: []string{"openid"}}, nil
}

func newAuthEngine(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), AuthMiddleware(validator, "X-User-Id", zerolog.Nop()))
	engine.GET("/whoami", func(c *gin.Context) {
		principal, _ := PrincipalFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": principal.ID, "method": principal.AuthMethod})
	})
	return engine
}

func TestAuthMiddlewareDevHeader(t *testing.T) {
	engine := newAuthEngine(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-Id", " user-7 ")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"user-7","method":"dev_header"}`, w.Body.String())
	assert.Equal(t, string(domain.AuthMethodDevHeader), w.Header().Get("X-Auth-Method"))
}

func TestAuthMiddlewareRejectsMissingPrincipal(t *testing.T) {
	engine := newAuthEngine(nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestAuthMiddlewareJWT(t *testing.T) {
	engine := newAuthEngine(stubValidator{subject: "sub-1"})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid bearer", "Bearer good-token", http.StatusOK},
		{"lowercase scheme", "bearer good-token", http.StatusOK},
		{"invalid token", "Bearer bad-token", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			// The dev header is ignored once JWT validation is on.
			req.Header.Set("X-User-Id", "spoofed")
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"sub-1","method":"jwt"}`, w.Body.String())
			}
		})
	}
}
