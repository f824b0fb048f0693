package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/dashboard"
	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/crontab"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Profiles
	ProvideUserService,
	wire.Bind(new(identity.Profiles), new(*user.Service)),
	wire.Bind(new(chat.Directory), new(*user.Service)),
	wire.Bind(new(dashboard.Profiles), new(*user.Service)),
	wire.Bind(new(device.ExerciseRecorder), new(*user.Service)),
	wire.Bind(new(crontab.StatisticsRefresher), new(*user.Service)),

	// Identity
	identity.NewService,

	// Chat
	ProvideChatConfig,
	chat.NewService,

	// Devices
	ProvideDeviceConfig,
	device.NewService,
	wire.Bind(new(dashboard.Devices), new(*device.Service)),
	wire.Bind(new(crontab.StaleSweeper), new(*device.Service)),

	// Dashboard
	dashboard.NewService,
)

func ProvideUserService(cfg *config.Config, repo user.Repository, cache user.Cache, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *user.Service {
	return user.NewService(repo, cache, sanitizer, cfg.SearchResultLimit, log)
}

func ProvideChatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		HistoryLimit:     cfg.MessageHistoryLimit,
		MaxMessageLength: cfg.MaxMessageLength,
	}
}

func ProvideDeviceConfig(cfg *config.Config) device.Config {
	return device.Config{
		SensorHistoryLimit: cfg.SensorHistoryLimit,
		LockTTL:            cfg.SessionLockTTL,
		CommandTimeout:     cfg.CommandTimeout,
		StaleAfter:         cfg.StaleSessionAfter,
	}
}
