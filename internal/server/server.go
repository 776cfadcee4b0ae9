package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/cultivar-map/internal/api"
	"github.com/joeblew999/cultivar-map/internal/api/viewer"
	"github.com/joeblew999/cultivar-map/internal/db"
	"github.com/joeblew999/cultivar-map/internal/logging"
	"github.com/joeblew999/cultivar-map/internal/metrics"
	"github.com/joeblew999/cultivar-map/internal/service"
	"github.com/joeblew999/cultivar-map/internal/session"
	"github.com/joeblew999/cultivar-map/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and template overrides
	WMSURL  string // Overrides the WMS endpoint from site.yaml when set
	DuckDB  string // db.InMemory, a file path, or empty to disable the SQL mirror
	Watch   bool   // Reload template overrides on change
	Version string

	SessionTTL time.Duration
}

// Server is the cultivar map HTTP server.
type Server struct {
	config   Config
	logger   *zap.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	sessions *session.Manager
	bus      *service.EventBus
	renderer *templates.Renderer
}

// New loads the data directory and wires every route.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Server, error) {
	services, err := api.Load(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	services.Version = cfg.Version
	if cfg.WMSURL != "" {
		services.Layers.Site().Map.WMSURL = cfg.WMSURL
	}
	logger.Info("data_loaded",
		zap.String("dir", cfg.DataDir),
		zap.Int("layers", services.Layers.Len()),
		zap.Int("legends", len(services.Catalog.Layers())),
		zap.Int("cells", services.Grid.Len()))

	// Fragment overrides live in <web-dir>/templates/fragments; the
	// embedded set is used when that directory does not exist.
	var fragmentsDir string
	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fragmentsDir = dir
		}
	}
	renderer, err := templates.New(fragmentsDir)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	if fragmentsDir != "" {
		logger.Info("templates_loaded", zap.String("dir", fragmentsDir))
	}

	if cfg.DuckDB != "" {
		conn, err := db.Open(cfg.DuckDB)
		if err != nil {
			return nil, err
		}
		if err := db.Load(ctx, conn, services.Grid, services.Catalog); err != nil {
			conn.Close()
			return nil, err
		}
		services.DB = conn
		logger.Info("duckdb_loaded", zap.String("path", cfg.DuckDB))
	}

	mux := http.NewServeMux()

	humaConfig := api.WithFormats(huma.DefaultConfig("cultivar-map API", "1.0.0"))
	humaConfig.Info.Description = "Opportunity map viewer: layer catalog, grid cell legends and the Datastar viewer."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		db:       services.DB,
		services: services,
		sessions: session.NewManager(services.Layers.ViewLayers(), cfg.SessionTTL),
		bus:      service.NewEventBus(64),
		renderer: renderer,
	}
	s.routes()
	s.handler = logging.AccessMiddleware(logger, mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the loaded configuration to CLI subcommands.
func (s *Server) Services() *api.Services {
	return s.services
}

// Run serves on the configured address until ctx is done, sweeping idle
// sessions and, with Watch, reloading template overrides.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	srv := &http.Server{Addr: addr, Handler: s}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.sessions.Run(ctx, time.Minute, func(removed int) {
			metrics.SessionsActive.Set(float64(s.sessions.Len()))
			s.logger.Debug("sessions_swept", zap.Int("removed", removed))
		})
		return nil
	})
	if s.config.Watch {
		g.Go(func() error {
			err := s.renderer.Watch(ctx, 100*time.Millisecond, func(err error) {
				if err != nil {
					s.logger.Warn("templates_reload_failed", zap.Error(err))
					return
				}
				s.logger.Info("templates_reloaded", zap.String("dir", s.renderer.Dir()))
			})
			if err != nil {
				s.logger.Warn("templates_watch_disabled", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.logger.Info("server_listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return g.Wait()
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.services).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.services).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	viewerHandler := viewer.New(s.services, s.sessions, s.bus, s.renderer, s.logger)
	viewerHandler.RegisterRoutes(s.humaAPI)

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.Handle("/metrics", metrics.Handler())

	// Page routes
	s.mux.HandleFunc("/viewer", viewerHandler.ServePage)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/viewer", http.StatusFound)
}
