package supportnotes

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/supportnotes/supportnotes/pkg/auth"
	"github.com/supportnotes/supportnotes/pkg/notes"
	"github.com/supportnotes/supportnotes/pkg/store"
	"github.com/supportnotes/supportnotes/pkg/store/memory"
	"github.com/supportnotes/supportnotes/pkg/store/mongo"
	"github.com/supportnotes/supportnotes/pkg/store/postgres"
	"github.com/supportnotes/supportnotes/pkg/store/surrealdb"
)

// App holds the application state shared by every request.
type App struct {
	store    store.Store
	config   *Config
	logger   zerolog.Logger
	tokens   *auth.Tokens
	accounts *auth.Accounts
	readOnly atomic.Bool
}

// New opens the configured backend and creates an application on top of it.
func New(ctx context.Context, config *Config, logger zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	app, err := NewWithStore(st, config, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return app, nil
}

// NewWithStore creates an application on an already opened store. The app owns st
// from then on and closes it in Close.
func NewWithStore(st store.Store, config *Config, logger zerolog.Logger) (*App, error) {
	secret := []byte(config.AuthSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		logger.Warn().Msg("auth.secret not set, using a random secret; sessions end on restart")
	}
	tokens, err := auth.NewTokens(secret, config.AuthTTL)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: config,
		logger: logger,
		tokens: tokens,
	}
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(st, app.IsReadOnly)
	app.accounts = auth.NewAccounts(app.store, config.AuthEmailDomain)
	return app, nil
}

func openStore(ctx context.Context, config *Config, logger zerolog.Logger) (store.Store, error) {
	switch config.Backend {
	case BackendMemory:
		if config.MemoryFile == "" {
			logger.Info().Msg("Using in-memory store")
			return memory.New(), nil
		}
		st, err := memory.Open(config.MemoryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		logger.Info().Str("file", config.MemoryFile).Msg("Using in-memory store with snapshot file")
		return st, nil

	case BackendSurrealDB:
		st, err := surrealdb.New(ctx, surrealdb.Config{
			URL:       config.SurrealDBURL,
			Namespace: config.SurrealDBNS,
			Database:  config.SurrealDBDB,
			Username:  config.SurrealDBUser,
			Password:  config.SurrealDBPass,
			Transport: config.SurrealDBTransport,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		logger.Info().Str("url", config.SurrealDBURL).Str("transport", config.SurrealDBTransport).Msg("Connected to SurrealDB")
		return st, nil

	case BackendPostgres:
		st, err := postgres.New(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info().Msg("Connected to PostgreSQL")
		return st, nil

	case BackendMongo:
		st, err := mongo.New(ctx, config.MongoURI, config.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("database", config.MongoDatabase).Msg("Connected to MongoDB")
		return st, nil
	}
	return nil, fmt.Errorf("unknown backend %q", config.Backend)
}

// Close closes the application and its resources
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the read-only guarded store.
func (a *App) Store() store.Store {
	return a.store
}

// Accounts returns the sign-in account service.
func (a *App) Accounts() *auth.Accounts {
	return a.accounts
}

// SetReadOnly switches write rejection on or off without a restart.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.logger.Info().Bool("read_only", readOnly).Msg("Application read-only mode changed")
}

// IsReadOnly is consulted by the store wrapper on every write.
func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// NotesService returns a notes service bound to this app's store. Sessions are taken
// from the context passed to each call.
func (a *App) NotesService(logger zerolog.Logger) *notes.Service {
	return notes.NewService(a.store, auth.ContextSource{},
		notes.WithCollection(a.config.DefaultCollection),
		notes.WithLogger(logger),
	)
}
