package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"

	"jan-server/services/session-api/internal/infrastructure/logger"
)

// SchemaName is the postgres schema holding every table of the service.
const SchemaName = "session_api"

// Config holds database configuration
type Config struct {
	WriteDSN    string
	ReadDSNs    []string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
	LogLevel    gormlogger.LogLevel
}

// Connect opens the primary connection, creating the database when it does not exist yet, and
// registers read replicas when any are configured.
func Connect(cfg Config) (*gorm.DB, error) {
	log := logger.GetLogger()
	if cfg.WriteDSN == "" {
		return nil, errors.New("database DSN is empty")
	}

	if err := ensureDatabaseExists(cfg.WriteDSN); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.WriteDSN), GormConfig(cfg.LogLevel))
	if err != nil {
		log.Error().
			Str("error_code", "6ddb5098-6acb-4d9f-99ff-1a574487e92c").
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	replicas := make([]gorm.Dialector, 0, len(cfg.ReadDSNs))
	for _, dsn := range cfg.ReadDSNs {
		if strings.TrimSpace(dsn) != "" {
			replicas = append(replicas, postgres.Open(dsn))
		}
	}
	if len(replicas) > 0 {
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxIdleConns(cfg.MaxIdle).
			SetMaxOpenConns(cfg.MaxOpen).
			SetConnMaxLifetime(cfg.MaxLifetime)
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register read replicas: %w", err)
		}
		log.Info().Int("replicas", len(replicas)).Msg("read replicas registered")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	log.Info().Msg("Successfully connected to database")
	return db, nil
}

// GormConfig places every table in the service schema.
func GormConfig(level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: SchemaName + ".",
		},
		Logger: gormlogger.Default.LogMode(level),
	}
}

// Ping checks the primary connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDatabaseExists(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return nil // key=value DSNs are left to the server
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return nil
	}

	adminURL := *u
	adminURL.Path = "/postgres"

	sqlDB, err := sql.Open("postgres", adminURL.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var exists bool
	err = sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists {
		return nil
	}

	log := logger.GetLogger()
	log.Info().Str("database", dbName).Msg("creating database")
	_, err = sqlDB.Exec("CREATE DATABASE " + quoteIdentifier(dbName))
	return err
}

func quoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
