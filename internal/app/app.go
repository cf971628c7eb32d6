// Package app wires the storage, catalog, search, favorites and session
// components together for a front end.
package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/drallgood/bookfinder/internal/api/openlibrary"
	"github.com/drallgood/bookfinder/internal/auth"
	"github.com/drallgood/bookfinder/internal/config"
	"github.com/drallgood/bookfinder/internal/favorites"
	"github.com/drallgood/bookfinder/internal/logger"
	"github.com/drallgood/bookfinder/internal/models"
	"github.com/drallgood/bookfinder/internal/search"
	"github.com/drallgood/bookfinder/internal/storage"
)

// App is the running application core
type App struct {
	cfg    *config.Config
	logger *logger.Logger

	store     storage.Store
	catalog   openlibrary.Searcher
	search    *search.Session
	favorites *favorites.Set
	auth      *auth.Service

	mu       sync.RWMutex
	darkMode bool
}

// Option customizes New
type Option func(*options)

type options struct {
	store    storage.Store
	searcher openlibrary.Searcher
	provider auth.Provider
	logger   *logger.Logger
}

// WithStore uses store instead of opening the configured backend
func WithStore(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

// WithSearcher uses searcher instead of the Open Library client
func WithSearcher(searcher openlibrary.Searcher) Option {
	return func(o *options) { o.searcher = searcher }
}

// WithAuthProvider replaces the mock login provider
func WithAuthProvider(p auth.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger sets the base logger
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the application from cfg. Persisted state is not read until
// Start is called.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log = logger.Get()
	}
	component := func(name string) *logger.Logger {
		return log.WithFields(map[string]interface{}{"component": name})
	}

	store := o.store
	if store == nil {
		var err error
		store, err = storage.Open(storage.Config{
			Driver: cfg.Storage.Driver,
			Path:   cfg.Storage.Path,
		}, component("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	searcher := o.searcher
	if searcher == nil {
		searcher = openlibrary.NewClientWithConfig(&openlibrary.ClientConfig{
			BaseURL:   cfg.Catalog.BaseURL,
			PageSize:  cfg.Catalog.PageSize,
			Timeout:   cfg.Catalog.Timeout,
			UserAgent: cfg.Catalog.UserAgent,
			RateLimit: cfg.Catalog.RateLimit,
		}, component("openlibrary_client"))
	}

	provider := o.provider
	if provider == nil {
		provider = &auth.MockProvider{
			Delay:       cfg.Auth.LoginDelay,
			DefaultName: cfg.Auth.DefaultName,
		}
	}

	a := &App{
		cfg:     cfg,
		logger:  component("app"),
		store:   store,
		catalog: searcher,
		search: search.NewSession(searcher, search.Options{
			PageSize: cfg.Catalog.PageSize,
			Timeout:  cfg.Catalog.Timeout,
			Logger:   component("search"),
		}),
		favorites: favorites.New(store, component("favorites")),
		auth:      auth.NewService(store, provider, component("auth")),
		darkMode:  cfg.App.DarkMode,
	}
	return a, nil
}

// Start rehydrates favorites and the session from storage. Corrupt records
// are discarded by the components themselves, so Start only fails if ctx
// is done.
func (a *App) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.favorites.Load(gctx)
		return nil
	})
	g.Go(func() error {
		a.auth.Restore(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.logger.Info("Application started", map[string]interface{}{
		"storage_driver": a.cfg.Storage.Driver,
		"favorites":      a.favorites.Len(),
		"authenticated":  a.auth.IsAuthenticated(),
	})
	return nil
}

// Close releases the store
func (a *App) Close() error {
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}

// Config returns the configuration the app was built with
func (a *App) Config() *config.Config { return a.cfg }

// Catalog returns the catalog searcher backing the session
func (a *App) Catalog() openlibrary.Searcher { return a.catalog }

// Search returns the search session
func (a *App) Search() *search.Session { return a.search }

// Favorites returns the favorites set
func (a *App) Favorites() *favorites.Set { return a.favorites }

// Auth returns the session service
func (a *App) Auth() *auth.Service { return a.auth }

// ToggleTheme flips dark mode and returns the new value. The theme lives
// in memory only.
func (a *App) ToggleTheme() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.darkMode = !a.darkMode
	return a.darkMode
}

// DarkMode reports the current theme
func (a *App) DarkMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.darkMode
}

// CoverURL derives the cover link for b against the configured covers host
func (a *App) CoverURL(b models.Book, size models.CoverSize) (string, bool) {
	return b.CoverURLFrom(a.cfg.Catalog.CoversURL, size)
}

// Permalink derives the catalog page for b against the configured host
func (a *App) Permalink(b models.Book) string {
	return b.PermalinkFrom(a.cfg.Catalog.BaseURL)
}
