package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"filltrip/internal/handlers"
)

// only restricts h to a single HTTP method
func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, staticFS fs.FS, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files from embedded filesystem
	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal("failed to create static sub-filesystem", zap.Error(err))
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/health", only(http.MethodGet, handler.HandleHealthCheck))
	mux.HandleFunc("/api/v1/open-url", only(http.MethodPost, openURLHandler(log)))

	mux.HandleFunc("/api/v1/auth/signup", only(http.MethodPost, handler.HandleSignup))
	mux.HandleFunc("/api/v1/auth/login", only(http.MethodPost, handler.HandleLogin))
	mux.HandleFunc("/api/v1/auth/logout", only(http.MethodPost, handler.HandleLogout))
	mux.HandleFunc("/api/v1/auth/me", only(http.MethodGet, handler.RequireUser(handler.HandleMe)))

	mux.HandleFunc("/api/v1/address-search", only(http.MethodGet, handler.RequireUser(handler.HandleAddressSearch)))
	mux.HandleFunc("/api/v1/route-cache", only(http.MethodDelete, handler.RequireUser(handler.HandleClearRouteCache)))

	mux.HandleFunc("/api/v1/planner/view", only(http.MethodGet, handler.RequireUser(handler.HandlePlannerView)))
	mux.HandleFunc("/api/v1/planner/events", only(http.MethodPost, handler.RequireUser(handler.HandlePlannerEvent)))
	mux.HandleFunc("/api/v1/planner/live", only(http.MethodGet, handler.RequireUser(handler.HandlePlannerLive)))

	// Page routes
	mux.HandleFunc("/", only(http.MethodGet, handler.HandleIndexPage))
	mux.HandleFunc("/login", only(http.MethodGet, handler.HandleLoginPage))
	mux.HandleFunc("/signup", only(http.MethodGet, handler.HandleSignupPage))
	mux.HandleFunc("/map", only(http.MethodGet, handler.RequireUser(handler.HandleMapPage)))

	return mux
}

// openURLHandler opens a URL in the system's default browser. The desktop
// shell uses it for map attribution links.
func openURLHandler(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.URL == "" {
			http.Error(w, "URL is required", http.StatusBadRequest)
			return
		}

		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			http.Error(w, "Only HTTP/HTTPS URLs are allowed", http.StatusBadRequest)
			return
		}

		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "linux":
			cmd = exec.Command("xdg-open", req.URL)
		case "darwin":
			cmd = exec.Command("open", req.URL)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", req.URL)
		default:
			http.Error(w, "Unsupported platform", http.StatusInternalServerError)
			return
		}

		if err := cmd.Start(); err != nil {
			log.Warn("failed to open URL", zap.String("url", req.URL), zap.Error(err))
			http.Error(w, "Failed to open URL", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func loggingMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logger
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (Wails webview and local development)
		if origin == "" || handlers.IsAllowedOrigin(origin) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
