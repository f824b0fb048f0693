package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"physio-server/pkg/observability"
	"physio-server/pkg/observability/worker"
	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/realtime"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/infrastructure/cache"
	"physio-server/services/physio-api/internal/infrastructure/crontab"
	"physio-server/services/physio-api/internal/infrastructure/database"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/infrastructure/devicelink"
	"physio-server/services/physio-api/internal/infrastructure/lock"
	"physio-server/services/physio-api/internal/infrastructure/logger"
	"physio-server/services/physio-api/internal/infrastructure/presets"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
	"physio-server/services/physio-api/internal/infrastructure/repository/chatrepo"
	"physio-server/services/physio-api/internal/infrastructure/repository/devicerepo"
	"physio-server/services/physio-api/internal/infrastructure/repository/userrepo"
)

// ServiceVersion is stamped into traces and the root endpoint.
var ServiceVersion = "dev"

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideLogger builds the service logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg)
}

// ProvideObservability initialises tracing and OTEL metrics. The provider is
// always usable; exporters are attached only when enabled.
func ProvideObservability(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*observability.Provider, func(), error) {
	obsCfg := observability.DefaultConfig(cfg.ServiceName)
	obsCfg.ServiceVersion = ServiceVersion
	obsCfg.Environment = cfg.Environment
	obsCfg.TracingEnabled = cfg.EnableTracing
	obsCfg.MetricsEnabled = cfg.EnableMetrics
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.PIILevel = cfg.LogPIILevel

	provider, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize observability: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}
	return provider, cleanup, nil
}

// ProvideSanitizer exposes the PII sanitizer owned by observability
func ProvideSanitizer(provider *observability.Provider) *telemetry.Sanitizer {
	return provider.Sanitizer
}

// ProvideDatabase connects and migrates the database. The memory driver has
// no database and returns nil.
func ProvideDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	if cfg.DatabaseDriver == config.DatabaseDriverMemory {
		log.Warn().Msg("DB_DRIVER=memory: data is lost on restart")
		return nil, func() {}, nil
	}

	db, err := database.Connect(database.ConfigFrom(cfg), log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}

	log.Info().Msg("Running database migrations...")
	if err := database.AutoMigrate(ctx, db, cfg.DatabaseDriver, log); err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Info().Msg("Database migrations completed successfully")
	return db, cleanup, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideUserRepository picks the store matching DB_DRIVER
func ProvideUserRepository(cfg *config.Config, db *transaction.Database) user.Repository {
	if cfg.DatabaseDriver == config.DatabaseDriverMemory {
		return userrepo.NewInMemoryRepository()
	}
	return userrepo.NewUserGormRepository(db)
}

// ProvideChatRepository picks the store matching DB_DRIVER
func ProvideChatRepository(cfg *config.Config, db *transaction.Database) chat.Repository {
	if cfg.DatabaseDriver == config.DatabaseDriverMemory {
		return chatrepo.NewInMemoryRepository()
	}
	return chatrepo.NewChatGormRepository(db)
}

// ProvideDeviceStore picks the store matching DB_DRIVER
func ProvideDeviceStore(cfg *config.Config, db *transaction.Database) device.Store {
	if cfg.DatabaseDriver == config.DatabaseDriverMemory {
		return devicerepo.NewInMemoryRepository()
	}
	return devicerepo.NewDeviceGormRepository(db)
}

// ProvideRedis connects to Redis when REDIS_URL is set; otherwise nil.
func ProvideRedis(cfg *config.Config, log zerolog.Logger) (*cache.RedisCache, func(), error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, func() {}, nil
	}
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	}, nil
}

// ProvideMemoryCache provides the process-local LRU
func ProvideMemoryCache(cfg *config.Config) (*cache.MemoryCache, error) {
	return cache.NewMemoryCache(cfg.CacheSize)
}

// ProvideProfileCache shares profiles through Redis when available
func ProvideProfileCache(cfg *config.Config, redisCache *cache.RedisCache, memory *cache.MemoryCache, log zerolog.Logger) user.Cache {
	if redisCache != nil {
		return cache.NewRedisProfileCache(redisCache, cfg.ProfileCacheTTL, log)
	}
	return cache.NewMemoryProfileCache(memory, cfg.ProfileCacheTTL)
}

// ProvideRevocationList keeps signed-out tokens in Redis when available so
// every replica rejects them.
func ProvideRevocationList(redisCache *cache.RedisCache, memory *cache.MemoryCache) identity.RevocationList {
	if redisCache != nil {
		return cache.NewRedisRevocationList(redisCache)
	}
	return cache.NewMemoryRevocationList(memory)
}

// ProvideLocker serialises device session writers across replicas when Redis
// is available.
func ProvideLocker(redisCache *cache.RedisCache, log zerolog.Logger) device.Locker {
	if redisCache != nil {
		return lock.NewRedis(redisCache.Client(), log)
	}
	return lock.NewLocal()
}

// ProvideBroker selects the realtime fan-out for REALTIME_BROKER
func ProvideBroker(ctx context.Context, cfg *config.Config, redisCache *cache.RedisCache, log zerolog.Logger) (realtime.Broker, func(), error) {
	var broker realtime.Broker
	switch cfg.BrokerDriver {
	case config.BrokerRedis:
		if redisCache == nil {
			return nil, nil, fmt.Errorf("REALTIME_BROKER redis requires REDIS_URL")
		}
		broker = pubsub.NewRedisBroker(redisCache.Client(), log)
	case config.BrokerPostgres:
		pg, err := pubsub.NewPostgresBroker(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		broker = pg
	default:
		broker = pubsub.NewMemoryBroker()
	}
	log.Info().Str("broker", cfg.BrokerDriver).Msg("realtime broker ready")

	return broker, func() {
		if err := broker.Close(); err != nil {
			log.Error().Err(err).Msg("close realtime broker")
		}
	}, nil
}

// ProvideDeviceLink selects the controller link for DEVICE_CONTROLLER_MODE
func ProvideDeviceLink(cfg *config.Config, log zerolog.Logger) devicelink.Link {
	switch cfg.ControllerMode {
	case config.ControllerWebSocket:
		var resolvers []devicelink.Resolver
		if cfg.DiscoveryEnabled {
			resolvers = append(resolvers, devicelink.DiscoveryResolver(devicelink.DiscoveryConfig{
				Service: cfg.DiscoveryService,
				Timeout: cfg.DiscoveryTimeout,
			}))
		}
		if strings.TrimSpace(cfg.ControllerURL) != "" {
			resolvers = append(resolvers, devicelink.StaticResolver(cfg.ControllerURL))
		}
		return devicelink.NewClient(devicelink.FirstOf(resolvers...), cfg.ReconnectDelay, log)
	case config.ControllerSimulated:
		log.Warn().Msg("DEVICE_CONTROLLER_MODE=simulated: device progress is synthetic")
		return devicelink.NewSimulator(cfg.SimulatorTick, cfg.SimulatorStep, log)
	default:
		log.Warn().Msg("device controller disabled: start and stop commands will be refused")
		return devicelink.Disabled{}
	}
}

// ProvidePresets loads the preset catalogue
func ProvidePresets(cfg *config.Config, log zerolog.Logger) (*presets.Catalog, error) {
	return presets.Load(cfg.PresetsFile, log)
}

// ProvideTokenIssuer signs session tokens
func ProvideTokenIssuer(cfg *config.Config) *auth.JWTIssuer {
	return auth.NewJWTIssuer(cfg.JWTSecret, cfg.AuthIssuer, cfg.TokenTTL)
}

// ProvidePasswordHasher hashes passwords with bcrypt
func ProvidePasswordHasher(cfg *config.Config) *auth.BcryptHasher {
	return auth.NewBcryptHasher(cfg.BcryptCost)
}

// ProvideExternalVerifier verifies OIDC id tokens when enabled. Disabled
// verification is a nil interface so the identity service refuses the flow.
func ProvideExternalVerifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) (identity.ExternalVerifier, func(), error) {
	if !cfg.OIDCEnabled {
		return nil, func() {}, nil
	}
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCJWKSURL, cfg.OIDCIssuer, cfg.OIDCAudience, cfg.OIDCRefresh, log)
	if err != nil {
		return nil, nil, err
	}
	return verifier, verifier.Close, nil
}

// ProvideCrontabSchedules maps the cron settings
func ProvideCrontabSchedules(cfg *config.Config) crontab.Schedules {
	return crontab.Schedules{
		DoctorStatistics: cfg.StatisticsSchedule,
		StaleSessions:    cfg.StaleSweepSchedule,
	}
}

// ProvideJobInstrumenter traces scheduled jobs when tracing or OTEL metrics
// are enabled.
func ProvideJobInstrumenter(cfg *config.Config, provider *observability.Provider) (crontab.Instrumenter, error) {
	if !cfg.EnableTracing && !cfg.EnableMetrics {
		return nil, nil
	}
	instrumenter, err := worker.NewJobInstrumenter(provider.Tracer, provider.Meter, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	return instrumenter, nil
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config and logging
	ProvideConfig,
	ProvideLogger,
	ProvideObservability,
	ProvideSanitizer,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,

	// Repositories
	ProvideUserRepository,
	ProvideChatRepository,
	ProvideDeviceStore,

	// Caches, locks and fan-out
	ProvideRedis,
	ProvideMemoryCache,
	ProvideProfileCache,
	ProvideRevocationList,
	ProvideLocker,
	ProvideBroker,

	// Devices
	ProvideDeviceLink,
	wire.Bind(new(device.Controller), new(devicelink.Link)),
	ProvidePresets,
	wire.Bind(new(device.PresetCatalog), new(*presets.Catalog)),

	// Auth
	ProvideTokenIssuer,
	wire.Bind(new(identity.TokenIssuer), new(*auth.JWTIssuer)),
	ProvidePasswordHasher,
	wire.Bind(new(identity.PasswordHasher), new(*auth.BcryptHasher)),
	ProvideExternalVerifier,

	// Scheduled jobs
	ProvideCrontabSchedules,
	ProvideJobInstrumenter,
	crontab.NewCrontab,
)
