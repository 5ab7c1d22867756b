package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanchat-io/fanchat-server/internal/config"
	"github.com/fanchat-io/fanchat-server/internal/fanout"
	"github.com/fanchat-io/fanchat-server/internal/sanitize"
	"github.com/fanchat-io/fanchat-server/internal/service/chat"
	"github.com/fanchat-io/fanchat-server/internal/store"
	"github.com/fanchat-io/fanchat-server/internal/store/sqlite"
	transporthttp "github.com/fanchat-io/fanchat-server/internal/transport/http"
)

// App wires together the store, sanitization, fan-out, and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var pub fanout.Publisher
	if cfg.GripURL != "" {
		gripPub, err := fanout.NewGripPublisher(cfg.GripURL, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init grip publisher: %w", err)
		}
		pub = gripPub
		logger.Info().Msg("grip publisher initialized")
	} else {
		pub = fanout.NewNopPublisher(logger)
		logger.Warn().Msg("no grip url configured, events will not be delivered")
	}

	cleaner := sanitize.NewCleaner(cfg.MessageMaxLength)
	svc := chat.New(st, cleaner, pub, logger)
	server := transporthttp.NewServer(st, svc, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
