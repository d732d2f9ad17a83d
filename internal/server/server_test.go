package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filltrip/internal/config"
	"filltrip/internal/handlers"
	"filltrip/internal/models"
	"filltrip/web"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:      config.ServerConfig{Addr: "127.0.0.1:0"},
		Database:    config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "filltrip.db")},
		Geocoding:   config.GeocodingConfig{Provider: config.ProviderNominatim, Country: "ph", Limit: 5, CacheSize: 16},
		Routing:     config.RoutingConfig{Provider: config.ProviderOSRM, Cache: true},
		Nominatim:   config.EndpointConfig{BaseURL: "http://127.0.0.1:1"},
		OSRM:        config.EndpointConfig{BaseURL: "http://127.0.0.1:1"},
		Geolocation: config.LocatorConfig{Provider: config.LocatorStatic, Lat: 14.6, Lng: 121.0},
		Planner:     config.PlannerConfig{Debounce: 10 * time.Millisecond, MinQueryLength: 3, MobileBreakpoint: 768, IdleTimeout: time.Minute},
		Session:     config.SessionConfig{TTL: time.Hour, CookieName: "filltrip_session", PurgeInterval: time.Minute},
	}
}

func startServer(t *testing.T) (string, *Server) {
	t.Helper()
	srv, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	addr, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return "http://" + addr, srv
}

func TestLoadTemplates(t *testing.T) {
	set, err := loadTemplates(web.Templates)
	require.NoError(t, err)

	for _, name := range pageFiles {
		assert.Contains(t, set.Pages, name)
	}
	assert.NotNil(t, set.Base.Lookup("layout.html"))
	assert.NotNil(t, set.Base.Lookup("address_suggestions.html"))
	assert.NotNil(t, set.Base.Lookup("endpoint_field.html"))
}

func TestTemplateFuncs(t *testing.T) {
	funcs := templateFuncs()

	initials := funcs["initials"].(func(string) string)
	assert.Equal(t, "AC", initials("Ana Maria Cruz"))
	assert.Equal(t, "A", initials("ana"))
	assert.Equal(t, "", initials("   "))

	assert.Equal(t, "15.23 km", funcs["formatDistance"].(func(float64) string)(15230))
}

func TestServerEndToEnd(t *testing.T) {
	base, _ := startServer(t)

	resp, err := http.Get(base + "/api/v1/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(base + "/api/v1/planner/view")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	signup := `{"fullName":"Ana Cruz","username":"ana","email":"ana@example.com","password":"secret123"}`
	resp, err = http.Post(base+"/api/v1/auth/signup", "application/json", strings.NewReader(signup))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	login := `{"email":"ana@example.com","password":"secret123"}`
	resp, err = http.Post(base+"/api/v1/auth/login", "application/json", strings.NewReader(login))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "filltrip_session" {
			session = c
		}
	}
	require.NotNil(t, session)

	req, _ := http.NewRequest("POST", base+"/api/v1/planner/events", bytes.NewBufferString(`{"type":"locate"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(session)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		req, _ := http.NewRequest("GET", base+"/api/v1/planner/view", nil)
		req.AddCookie(session)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var v struct {
			Start struct {
				Label string `json:"label"`
			} `json:"start"`
		}
		if json.NewDecoder(resp.Body).Decode(&v) != nil {
			return false
		}
		return v.Start.Label == "My location"
	}, 2*time.Second, 20*time.Millisecond)

	req, _ = http.NewRequest("GET", base+"/map", nil)
	req.AddCookie(session)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `id="planner"`)
	assert.Contains(t, string(body), "AC")
}

func TestSweepExpiresCachedRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Routing.CacheTTL = time.Hour
	srv, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ctx := context.Background()
	origin := models.Coordinates{Lng: 121.0, Lat: 14.6}
	dest := models.Coordinates{Lng: 121.1, Lat: 14.7}
	require.NoError(t, srv.db.RouteCache().Set(ctx, &models.RouteCacheEntry{Origin: origin, Destination: dest}))

	srv.sweep(ctx)
	hit, err := srv.db.RouteCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.NotNil(t, hit, "entry younger than the ttl is kept")

	srv.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	srv.sweep(ctx)
	hit, err = srv.db.RouteCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestMetricsEndpoint(t *testing.T) {
	base, _ := startServer(t)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "filltrip_planner_active_sessions")
}

func TestMethodNotAllowed(t *testing.T) {
	base, _ := startServer(t)

	resp, err := http.Get(base + "/api/v1/auth/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := corsMiddleware(next)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "wails://wails")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "wails://wails", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTeapot, w.Code)

	req = httptest.NewRequest("OPTIONS", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var seen *loggingResponseWriter
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.(*loggingResponseWriter)
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	loggingMiddleware(zap.NewNop(), next).ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))

	require.NotNil(t, seen)
	assert.Equal(t, http.StatusNotFound, seen.statusCode)

	// httptest.ResponseRecorder cannot be hijacked
	_, _, err := seen.Hijack()
	assert.Error(t, err)
}

func TestIsAllowedOrigin(t *testing.T) {
	assert.True(t, handlers.IsAllowedOrigin("http://localhost:34115"))
	assert.True(t, handlers.IsAllowedOrigin("http://127.0.0.1:8080"))
	assert.False(t, handlers.IsAllowedOrigin("http://localhost.evil.example"))
}
