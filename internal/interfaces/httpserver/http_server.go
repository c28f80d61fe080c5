package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/infrastructure"
	middleware "jan-server/services/session-api/internal/interfaces/httpserver/middlewares"
	"jan-server/services/session-api/internal/interfaces/httpserver/requests"
	v1 "jan-server/services/session-api/internal/interfaces/httpserver/routes/v1"
)

const readyTimeout = 2 * time.Second

type HTTPServer struct {
	engine  *gin.Engine
	infra   *infrastructure.Infrastructure
	v1Route *v1.V1Route
	config  *config.Config
}

func NewHTTPServer(
	v1Route *v1.V1Route,
	infra *infrastructure.Infrastructure,
	cfg *config.Config,
) (*HTTPServer, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := requests.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	server := &HTTPServer{
		engine:  gin.New(),
		infra:   infra,
		v1Route: v1Route,
		config:  cfg,
	}
	server.engine.Use(gin.Recovery())
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.LoggingMiddleware(infra.Logger))
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	server.engine.GET("/readyz", server.readyz)
	server.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Nil pointers must not reach the middleware as a non-nil interface.
	var validator middleware.TokenValidator
	if infra.JWTValidator != nil {
		validator = infra.JWTValidator
	}
	protected := server.engine.Group("/")
	protected.Use(middleware.AuthMiddleware(validator, cfg.DevPrincipalHeader, infra.Logger))
	server.v1Route.RegisterRouter(protected)

	return server, nil
}

func (s *HTTPServer) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := s.infra.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then drains in-flight requests for up to SHUTDOWN_TIMEOUT.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.infra.Logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.infra.Logger.Info().Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
