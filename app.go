package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"filltrip/internal/config"
	"filltrip/internal/logger"
	"filltrip/internal/server"
)

// App struct holds the Wails application state
type App struct {
	ctx    context.Context
	server *server.Server
	log    *zap.Logger
	url    string
}

// NewApp loads the config and starts the embedded HTTP server on a random
// local port before the window opens.
func NewApp() (*App, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Addr = "127.0.0.1:0"

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	addr, err := srv.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	app := &App{
		server: srv,
		log:    log.Named("desktop"),
		url:    fmt.Sprintf("http://%s", addr),
	}
	app.log.Info("internal HTTP server running", zap.String("url", app.url))
	return app, nil
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Navigate the WebView to the internal server immediately
	go func() {
		runtime.WindowExecJS(ctx, fmt.Sprintf(`window.location.href = "%s/map"`, a.url))
	}()
}

// shutdown is called when the app closes
func (a *App) shutdown(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("error shutting down server", zap.Error(err))
		}
	}
	a.log.Sync()
}

// ServerURL reports where the embedded planner is served
func (a *App) ServerURL() string {
	return a.url
}
