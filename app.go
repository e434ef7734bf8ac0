// Package bulletin serves a small community site whose news, gallery and
// featured video are edited from an admin dashboard and pushed to viewers
// as they change.
//
// Content lives in a remote backend (a realtime Redis store or a polling
// REST endpoint) and is mirrored into a local SQLite store so the site keeps
// working when the backend does not.
package bulletin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/bulletin/datasrv"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
	"github.com/eringen/bulletin/remote/redisstore"
	"github.com/eringen/bulletin/syncer"
	"github.com/eringen/bulletin/viewer"
	"github.com/eringen/bulletin/views"
)

const shutdownTimeout = 10 * time.Second

// App is the central bulletin application. It wires together the stores,
// the synchronizer, the viewer hub, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Local  *localstore.Store
	Sync   *syncer.Synchronizer
	Editor *syncer.Editor
	Hub    *viewer.Hub

	log          *logrus.Logger
	backend      remote.Backend
	closers      []func() error
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		log:       logrus.StandardLogger(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	return a
}

// Init opens the stores, resolves the backend and registers routes. Start
// calls it when it has not been called yet.
func (a *App) Init(ctx context.Context) error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("bulletin: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("bulletin: SessionSecret is required")
	}

	local, err := localstore.Open(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("bulletin: open local store: %w", err)
	}
	a.Local = local
	a.closers = append(a.closers, local.Close)

	if a.backend == nil {
		backend, err := a.openBackend(ctx)
		if err != nil {
			return err
		}
		a.backend = backend
	}

	a.Sync = syncer.New(a.backend, a.Local, syncer.WithLogger(a.log))
	a.Editor = syncer.NewEditor(a.Sync)
	if err := a.Editor.Load(ctx); err != nil {
		return fmt.Errorf("bulletin: load content: %w", err)
	}

	initial := viewer.NewSurface(a.Config.News, a.Config.Gallery, a.Config.VideoURL)
	a.Hub = viewer.NewHub(a.backend, a.Local, initial,
		viewer.WithLogger(a.log),
		viewer.WithPollInterval(a.Config.PollInterval),
	)
	// Show last known content before the first refresh completes.
	if snap, err := a.Local.LoadSnapshot(ctx); err == nil {
		a.Hub.Apply(snap)
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.closers = append(a.closers, a.loginLimiter.Close)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.log.WithFields(logrus.Fields{
		"backend": a.backend.Kind(),
		"addr":    a.Config.Addr,
	}).Info("bulletin initialized")
	return nil
}

func (a *App) openBackend(ctx context.Context) (remote.Backend, error) {
	kind, err := a.Config.BackendKind()
	if err != nil {
		return nil, fmt.Errorf("bulletin: %w", err)
	}
	cfg := remote.Config{
		Kind:     kind,
		BaseURL:  a.Config.RemoteURL,
		DataPath: a.Config.DataPath,
		Logger:   a.log,
	}
	if kind == remote.KindRealtime {
		store, err := redisstore.Dial(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Config.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("bulletin: connect realtime backend: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		cfg.Store = store
	}
	backend, err := remote.Select(cfg)
	if err != nil {
		return nil, fmt.Errorf("bulletin: select backend: %w", err)
	}
	return backend, nil
}

// Realtime reports whether the active backend pushes changes.
func (a *App) Realtime() bool {
	return a.backend != nil && a.backend.Kind() == remote.KindRealtime
}

// Start serves HTTP and keeps viewers current until ctx is done or the
// server fails.
func (a *App) Start(ctx context.Context) error {
	if a.Local == nil {
		if err := a.Init(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Hub.Start(gctx) })
	if a.Realtime() {
		g.Go(func() error {
			stop, err := a.Editor.Watch(gctx)
			if err != nil {
				a.log.WithError(err).Warn("admin content subscription failed")
				return nil
			}
			<-gctx.Done()
			stop()
			return nil
		})
	}
	g.Go(func() error {
		a.log.WithField("addr", a.Config.Addr).Info("listening")
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Echo.Shutdown(sctx)
	})
	return g.Wait()
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets (site.css, live.js) fall through to the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/site.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/live.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/", a.handleHome)
	e.GET("/live/", a.handleLive)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/news/", a.handleNewsAdd)
	e.POST("/admin/news/:index/delete/", a.handleNewsDelete)
	e.POST("/admin/gallery/", a.handleGalleryAdd)
	e.POST("/admin/gallery/:index/delete/", a.handleGalleryDelete)
	e.POST("/admin/video/", a.handleVideoSave)

	// REST data API for the polling backend
	if a.Config.ServeDataAPI {
		h := datasrv.NewHandler(datasrv.NewFileStore(a.Config.DataFile), a.log)
		h.RegisterRoutes(e.Group("/api"))
	}
}

// SiteViewConfig is the subset of the config templates see.
func (a *App) SiteViewConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
