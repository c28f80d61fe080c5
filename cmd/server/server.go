package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/infrastructure/crontab"
	"jan-server/services/session-api/internal/infrastructure/logger"
	"jan-server/services/session-api/internal/infrastructure/observability"
	"jan-server/services/session-api/internal/interfaces/httpserver"

	_ "net/http/pprof"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	config     *config.Config
	logger     zerolog.Logger
}

// Start runs the HTTP server, the cron jobs and the optional pprof listener until ctx is done or
// one of them fails.
func (application *Application) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	if application.config.PprofEnabled {
		pprof := &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", application.config.PprofPort),
			Handler:           http.DefaultServeMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		eg.Go(func() error {
			if err := pprof.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			return pprof.Close()
		})
	}
	eg.Go(func() error {
		return application.crontab.Run(ctx)
	})
	eg.Go(func() error {
		return application.httpServer.Run(ctx)
	})

	return eg.Wait()
}

func main() {
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, cleanup, err := CreateApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}
	defer cleanup()
	log = application.logger

	otelShutdown, err := observability.Setup(ctx, application.config, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}
