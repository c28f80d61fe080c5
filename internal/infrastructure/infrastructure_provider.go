package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/auth"
	"jan-server/services/session-api/internal/infrastructure/crontab"
	"jan-server/services/session-api/internal/infrastructure/database"
	"jan-server/services/session-api/internal/infrastructure/database/repository/conversationrepo"
	"jan-server/services/session-api/internal/infrastructure/database/transaction"
	"jan-server/services/session-api/internal/infrastructure/inference"
	"jan-server/services/session-api/internal/infrastructure/lock"
	"jan-server/services/session-api/internal/infrastructure/logger"
	"jan-server/services/session-api/internal/infrastructure/store"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	config.LoadEnvFiles()
	return config.Load()
}

// ProvideLogger builds the process logger from config and installs it globally.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Environment)
}

// ProvideStore selects the conversation store backend. The postgres backend connects, migrates
// when AUTO_MIGRATE is set and closes the pool on cleanup.
func ProvideStore(cfg *config.Config, log zerolog.Logger) (conversation.Store, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		log.Warn().Msg("using in-memory conversation store, data is lost on restart")
		return store.NewMemoryStore(log), func() {}, nil
	}

	db, err := ProvideDatabase(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
	return conversationrepo.NewConversationGormRepository(transaction.NewDatabase(db), log), cleanup, nil
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dbCfg := database.Config{
		WriteDSN:    cfg.DBPostgresqlWriteDSN,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnMaxLifetime,
	}
	if cfg.DBPostgresqlRead1DSN != "" {
		dbCfg.ReadDSNs = []string{cfg.DBPostgresqlRead1DSN}
	}
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			_ = database.Close(db)
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}
	return db, nil
}

// ProvideLocker selects the per-conversation lock backend, bounded by LOCK_WAIT.
func ProvideLocker(cfg *config.Config, log zerolog.Logger) (conversation.Locker, func(), error) {
	if cfg.LockBackend != config.LockBackendRedis {
		return lock.NewBounded(lock.NewLocalLocker(), cfg.LockWait), func() {}, nil
	}

	client, err := lock.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("close redis client")
		}
	}
	return lock.NewBounded(lock.NewRedisLocker(client, cfg.LockTTL, log), cfg.LockWait), cleanup, nil
}

// ProvideCompletionProvider wires the OpenAI-compatible inference client.
func ProvideCompletionProvider(cfg *config.Config, log zerolog.Logger) completion.Provider {
	models := cfg.Models
	if models == nil {
		models = config.EmptyModelCatalog()
	}
	return inference.NewInferenceProvider(inference.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	}, models, cfg.ServiceName, log)
}

// ProvideJWTValidator returns nil when AUTH_ENABLED is false; requests then authenticate with
// the dev principal header.
func ProvideJWTValidator(cfg *config.Config, log zerolog.Logger) (*auth.JWTValidator, func(), error) {
	if !cfg.AuthEnabled {
		log.Warn().Str("header", cfg.DevPrincipalHeader).Msg("authentication disabled, trusting dev principal header")
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	validator, err := auth.NewJWTValidator(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience, cfg.AuthRefreshInterval, authClockSkew, log)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return validator, func() {
		validator.Close()
		cancel()
	}, nil
}

const authClockSkew = 30 * time.Second

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Store        conversation.Store
	JWTValidator *auth.JWTValidator
}

func NewInfrastructure(
	cfg *config.Config,
	log zerolog.Logger,
	store conversation.Store,
	validator *auth.JWTValidator,
) *Infrastructure {
	return &Infrastructure{
		Config:       cfg,
		Logger:       log,
		Store:        store,
		JWTValidator: validator,
	}
}

var errJWKSNotReady = errors.New("jwks not loaded")

// Ready checks the dependencies a request needs.
func (i *Infrastructure) Ready(ctx context.Context) error {
	if err := i.Store.Ping(ctx); err != nil {
		return err
	}
	if i.JWTValidator != nil && !i.JWTValidator.Ready() {
		return errJWKSNotReady
	}
	return nil
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideLogger,

	// Storage and locking
	ProvideStore,
	ProvideLocker,

	// Completion provider
	ProvideCompletionProvider,

	// Auth
	ProvideJWTValidator,

	// Crontab for stats gauges
	crontab.NewCrontab,

	// Infrastructure struct
	NewInfrastructure,
)
