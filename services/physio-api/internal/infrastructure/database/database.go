package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"physio-server/services/physio-api/internal/config"
)

var SchemaRegistry []interface{}

// RegisterSchemaForAutoMigrate records models created by AutoMigrate on sqlite.
func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

// Config holds database configuration
type Config struct {
	Driver      string
	WriteDSN    string
	ReadDSN     string
	SQLitePath  string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// ConfigFrom maps service configuration onto database settings.
func ConfigFrom(cfg *config.Config) Config {
	level := gormlogger.Silent
	if strings.EqualFold(cfg.LogLevel, "debug") {
		level = gormlogger.Info
	}
	return Config{
		Driver:      cfg.DatabaseDriver,
		WriteDSN:    cfg.DatabaseURL,
		ReadDSN:     cfg.DatabaseReadURL,
		SQLitePath:  cfg.SQLitePath,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnLifetime,
		LogLevel:    level,
	}
}

// Connect opens the primary connection and, for postgres with a read DSN,
// registers the replica. Queries that must see their own writes use
// dbresolver.Write.
func Connect(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DatabaseDriverPostgres:
		dialector = postgres.Open(cfg.WriteDSN)
	case config.DatabaseDriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		log.Error().
			Str("error_code", "5c16fb53-d98c-4fc6-8bb4-9abd3c0b9e88").
			Str("driver", cfg.Driver).
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	if cfg.Driver == config.DatabaseDriverPostgres && strings.TrimSpace(cfg.ReadDSN) != "" {
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(cfg.ReadDSN)},
			Policy:   dbresolver.RandomPolicy{},
		})
		if cfg.MaxIdle > 0 {
			resolver = resolver.SetMaxIdleConns(cfg.MaxIdle)
		}
		if cfg.MaxOpen > 0 {
			resolver = resolver.SetMaxOpenConns(cfg.MaxOpen)
		}
		if cfg.MaxLifetime > 0 {
			resolver = resolver.SetConnMaxLifetime(cfg.MaxLifetime)
		}
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
		log.Info().Msg("read replica registered")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DatabaseDriverSQLite {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	log.Info().Str("driver", cfg.Driver).Msg("Successfully connected to database")
	return db, nil
}

// Ping checks the primary connection.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}
