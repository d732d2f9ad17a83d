package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/auth"
	"filltrip/internal/config"
	"filltrip/internal/database"
	"filltrip/internal/directions"
	"filltrip/internal/geocoding"
	"filltrip/internal/geolocation"
	"filltrip/internal/handlers"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
	"filltrip/internal/planner"
	"filltrip/internal/sqlite"
	"filltrip/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
	log        *zap.Logger

	purgeEvery time.Duration
	idleAfter  time.Duration
	routeTTL   time.Duration
	now        func() time.Time
	stop       context.CancelFunc
	wg         sync.WaitGroup
}

// New creates and initializes a new server (does not start it)
func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	log = log.Named("server")
	metrics.MustRegister()

	log.Info("initializing data store", zap.String("path", cfg.Database.Path))
	db, err := sqlite.New(cfg.Database.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	templates, err := loadTemplates(web.Templates)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	geocoder := newGeocoder(cfg, log)
	fetcher := newFetcher(cfg, db, log)
	locator := newLocator(cfg, log)

	plannerOpts := planner.Options{
		Geocoder:         geocoder,
		Fetcher:          fetcher,
		Locator:          locator,
		Debounce:         cfg.Planner.Debounce,
		MinQueryLength:   cfg.Planner.MinQueryLength,
		SearchLimit:      cfg.Geocoding.Limit,
		MobileBreakpoint: cfg.Planner.MobileBreakpoint,
		Logger:           log,
	}
	planners := handlers.NewPlannerRegistry(func(width int) (*planner.Controller, error) {
		opts := plannerOpts
		opts.InitialWidth = width
		return planner.New(opts)
	}, log)

	handler := &handlers.Handler{
		DB:            db,
		Auth:          auth.NewService(db, cfg.Session.TTL, log),
		Geocoder:      geocoder,
		Planners:      planners,
		Templates:     templates,
		Log:           log.Named("http"),
		CookieName:    cfg.Session.CookieName,
		SearchLimit:   cfg.Geocoding.Limit,
		MinQueryLen:   cfg.Planner.MinQueryLength,
		SecureCookies: cfg.Session.Secure,
	}

	mux := setupRoutes(handler, web.Static, log)

	// No WriteTimeout: live view websockets stay open
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           loggingMiddleware(log.Named("http"), corsMiddleware(mux)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Server.Addr,
		log:        log,
		purgeEvery: cfg.Session.PurgeInterval,
		idleAfter:  cfg.Planner.IdleTimeout,
		routeTTL:   cfg.Routing.CacheTTL,
		now:        time.Now,
	}, nil
}

func newGeocoder(cfg *config.Config, log *zap.Logger) geocoding.Geocoder {
	var g geocoding.Geocoder
	switch cfg.Geocoding.Provider {
	case config.ProviderMapbox:
		g = geocoding.NewMapboxGeocoder(cfg.Mapbox.BaseURL, cfg.Mapbox.Token, cfg.Geocoding.Country, log)
	default:
		g = geocoding.NewNominatimGeocoder(cfg.Nominatim.BaseURL, cfg.Geocoding.Country, log)
	}
	log.Info("geocoder ready", zap.String("provider", cfg.Geocoding.Provider), zap.Int("cache_size", cfg.Geocoding.CacheSize))
	return geocoding.NewCachedGeocoder(g, cfg.Geocoding.CacheSize, cfg.Geocoding.CacheTTL)
}

func newFetcher(cfg *config.Config, db database.DataStore, log *zap.Logger) directions.Fetcher {
	var f directions.Fetcher
	switch cfg.Routing.Provider {
	case config.ProviderMapbox:
		f = directions.NewMapboxFetcher(cfg.Mapbox.BaseURL, cfg.Mapbox.Token, log)
	default:
		f = directions.NewOSRMFetcher(cfg.OSRM.BaseURL, log)
	}
	log.Info("route fetcher ready", zap.String("provider", cfg.Routing.Provider), zap.Bool("cache", cfg.Routing.Cache))
	if !cfg.Routing.Cache {
		return f
	}
	return directions.NewCachedFetcher(f, db.RouteCache(), log)
}

// newLocator returns nil for the "none" provider; the browser then has to
// report positions itself.
func newLocator(cfg *config.Config, log *zap.Logger) geolocation.Locator {
	switch cfg.Geolocation.Provider {
	case config.LocatorStatic:
		return geolocation.NewStaticLocator(&models.Coordinates{Lng: cfg.Geolocation.Lng, Lat: cfg.Geolocation.Lat})
	case config.LocatorNone:
		return nil
	default:
		return geolocation.NewIPLocator(cfg.Geolocation.BaseURL, log)
	}
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.log.Info("starting server", zap.String("addr", actualAddr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.wg.Add(1)
	go s.janitor(ctx)

	return actualAddr, nil
}

// janitor drops expired login sessions and idle planners
func (s *Server) janitor(ctx context.Context) {
	defer s.wg.Done()
	if s.purgeEvery <= 0 {
		return
	}

	ticker := time.NewTicker(s.purgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	if _, err := s.handler.Auth.PurgeExpired(ctx); err != nil {
		s.log.Warn("failed to purge expired sessions", zap.Error(err))
	}
	if s.idleAfter > 0 {
		s.handler.Planners.Sweep(s.idleAfter)
	}
	if s.routeTTL > 0 {
		n, err := s.db.RouteCache().DeleteOlderThan(ctx, s.now().Add(-s.routeTTL))
		if err != nil {
			s.log.Warn("failed to purge route cache", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("purged cached routes", zap.Int64("count", n))
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
		s.wg.Wait()
	}
	s.handler.Planners.CloseAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// Template helper functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
		"toJSON": func(v interface{}) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "{}"
			}
			return template.JS(b)
		},
		"formatDistance": models.FormatDistance,
		"formatDuration": models.FormatDuration,
		"initials": func(name string) string {
			parts := strings.Fields(strings.TrimSpace(name))
			if len(parts) == 0 {
				return ""
			}

			first := []rune(parts[0])
			if len(parts) == 1 {
				if len(first) == 0 {
					return ""
				}
				return strings.ToUpper(string(first[0]))
			}

			last := []rune(parts[len(parts)-1])
			if len(first) == 0 || len(last) == 0 {
				return ""
			}
			return strings.ToUpper(string(first[0]) + string(last[0]))
		},
	}
}

// pageFiles are rendered inside layout.html
var pageFiles = []string{"login.html", "signup.html", "map.html"}

// loadTemplates loads all templates from the embedded filesystem
func loadTemplates(templatesFS fs.FS) (*handlers.TemplateSet, error) {
	funcs := templateFuncs()
	base := template.New("").Funcs(funcs)

	layoutContent, err := fs.ReadFile(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	if _, err = base.New("layout.html").Parse(string(layoutContent)); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partialFiles, err := fs.Glob(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, file := range partialFiles {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := strings.TrimPrefix(file, "templates/partials/")
		if _, err = base.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", file, err)
		}
	}

	// Pages stay unparsed; each render clones base and adds one
	pages := make(map[string]string)
	for _, name := range pageFiles {
		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", name, err)
		}
		pages[name] = string(content)
	}

	return &handlers.TemplateSet{
		Base:  base,
		Pages: pages,
		Funcs: funcs,
	}, nil
}
