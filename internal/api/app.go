package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dispatch-cms/dispatch/internal/contentstore"
	"github.com/dispatch-cms/dispatch/internal/seed"
	"github.com/dispatch-cms/dispatch/pkg/admin"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
	"github.com/dispatch-cms/dispatch/pkg/auth"
)

// App is a fully wired content API: server, store and token maker.
type App struct {
	Server *apicore.Server
	Store  *contentstore.MemoryStore
	Tokens *auth.PasetoMaker
}

// NewApp builds the content API from cfg, loading cfg.SeedFile when set.
func NewApp(cfg *apicore.Config) (*App, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = apicore.DefaultTokenTTL
	}
	srv := apicore.New(cfg)

	st, err := contentstore.New(srv.Logger)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	key := cfg.TokenKey
	if key == "" {
		// 32 hex characters, the key size the token maker requires
		key = strings.ReplaceAll(uuid.NewString(), "-", "")
		srv.Logger.Warn("no token key configured, tokens will not survive a restart")
	}
	// tokens follow the store clock so /admin/time/advance can expire them
	tokens, err := auth.NewPasetoMaker(key, st.Clock.Now)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("token maker: %w", err), st.Close())
	}

	if cfg.SeedFile != "" {
		fixtures, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return nil, errors.Join(err, st.Close())
		}
		if err := st.LoadFixtures(fixtures); err != nil {
			return nil, errors.Join(fmt.Errorf("load fixtures: %w", err), st.Close())
		}
		srv.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	NewHandler(st, tokens, cfg.TokenTTL, srv.Middleware(), srv.Logger).Routes(srv.Router)

	adminHandler := admin.NewHandler(st, srv.Middleware(), st.Clock)
	adminHandler.SetConfigProvider(srv)
	adminHandler.Routes(srv.Router)

	return &App{Server: srv, Store: st, Tokens: tokens}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
