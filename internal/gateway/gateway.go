// Package gateway wires the gateway together: config, store, auth provider,
// session registry and the connection manager, with the engine reached
// through injected collaborator interfaces.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dcgate/dcgate/internal/api"
	"github.com/dcgate/dcgate/internal/auth"
	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/domain"
	"github.com/dcgate/dcgate/internal/server"
	"github.com/dcgate/dcgate/internal/session"
	"github.com/dcgate/dcgate/internal/store"
)

// Engines is the set of engine collaborators the gateway fronts.
type Engines struct {
	Hubs       domain.HubManager
	Filelists  domain.FilelistManager
	Chats      domain.ChatManager
	Extensions domain.ExtensionManager
	System     domain.SystemMonitor
	Filesystem domain.Filesystem
}

// Gateway is the assembled application.
type Gateway struct {
	log      *slog.Logger
	cfg      *config.Config
	store    store.Store
	sessions *session.Manager
	server   *server.Server
	users    *userDirectory
}

// New assembles a gateway from its configuration and engine collaborators.
func New(cfg *config.Config, log *slog.Logger, engines Engines) (*Gateway, error) {
	st, err := store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := auth.NewProvider(cfg.Auth, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create auth provider: %w", err)
	}
	if err := provider.Bootstrap(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("bootstrap auth: %w", err)
	}

	users := newUserDirectory(st)
	sessions := session.NewManager(log, moduleFactories(engines, users))

	loginProvider, _ := provider.(auth.LoginProvider)
	srv := server.New(cfg, log, sessions, provider, loginProvider, st)

	return &Gateway{
		log:      log.With("component", "gateway"),
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		server:   srv,
		users:    users,
	}, nil
}

// Server exposes the connection manager, used by tests.
func (g *Gateway) Server() *server.Server { return g.server }

// Sessions exposes the session registry, used by tests.
func (g *Gateway) Sessions() *session.Manager { return g.sessions }

// Users exposes the account directory.
func (g *Gateway) Users() domain.UserDirectory { return g.users }

// Run starts the listeners and blocks until ctx is cancelled or a listener
// fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.sessions.StartIdleReaper(ctx, g.cfg.Session.ReapInterval.Duration, g.cfg.Session.IdleTimeout.Duration)

	errCh := make(chan error, 2)
	g.server.Start(errCh)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		g.log.Error("listener failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g.server.Shutdown(shutdownCtx)
	g.sessions.Shutdown()
	if cerr := g.store.Close(); cerr != nil {
		g.log.Warn("store close failed", "error", cerr)
	}
	return err
}

// moduleFactories maps module names to per-session constructors. Factories
// run lazily, on the first request naming the module.
func moduleFactories(engines Engines, users domain.UserDirectory) map[string]session.ModuleFactory {
	return map[string]session.ModuleFactory{
		"hubs": func(log *slog.Logger) api.Handler {
			return api.NewHubsModule(log, engines.Hubs)
		},
		"filelists": func(log *slog.Logger) api.Handler {
			return api.NewFilelistsModule(log, engines.Filelists)
		},
		"private_chat": func(log *slog.Logger) api.Handler {
			return api.NewPrivateChatModule(log, engines.Chats)
		},
		"extensions": func(log *slog.Logger) api.Handler {
			return api.NewExtensionsModule(log, engines.Extensions)
		},
		"system": func(log *slog.Logger) api.Handler {
			return api.NewSystemModule(log, engines.System)
		},
		"users": func(log *slog.Logger) api.Handler {
			return api.NewUsersModule(log, users)
		},
		"filesystem": func(log *slog.Logger) api.Handler {
			return api.NewFilesystemModule(log, engines.Filesystem)
		},
	}
}
