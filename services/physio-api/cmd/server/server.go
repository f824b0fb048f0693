package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/crontab"
	"physio-server/services/physio-api/internal/infrastructure/devicelink"
	"physio-server/services/physio-api/internal/interfaces/httpserver"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	link       devicelink.Link
	log        zerolog.Logger
}

// NewApplication connects controller status reports to the device service.
func NewApplication(
	httpServer *httpserver.HTTPServer,
	cron *crontab.Crontab,
	link devicelink.Link,
	devices *device.Service,
	log zerolog.Logger,
) *Application {
	link.OnStatus(func(ctx context.Context, report device.StatusReport) {
		if _, err := devices.ApplyStatus(ctx, report); err != nil {
			log.Warn().Err(err).
				Str("device", string(report.Kind)).
				Str("status", string(report.Status)).
				Msg("controller status rejected")
		}
	})
	return &Application{
		httpServer: httpServer,
		crontab:    cron,
		link:       link,
		log:        log,
	}
}

// @title Physio API
// @version 1.0
// @description Patient and doctor messaging, profiles and rehabilitation device sessions.
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func (application *Application) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return application.link.Run(ctx)
	})
	eg.Go(func() error {
		return application.crontab.Run(ctx)
	})
	eg.Go(func() error {
		return application.httpServer.Run(ctx)
	})
	return eg.Wait()
}

func loadEnvFiles() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Overload(file); err != nil {
				log.Warn().Err(err).Str("file", file).Msg("failed to load env file")
			}
		}
	}
}

func main() {
	loadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, cleanup, err := CreateApplication(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}
	defer cleanup()

	if err := application.Start(ctx); err != nil {
		application.log.Error().Err(err).Msg("application stopped")
		cleanup()
		os.Exit(1)
	}
	application.log.Info().Msg("application stopped")
}
