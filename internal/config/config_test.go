package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	t.Setenv("FILLTRIP_DATABASE_PATH", filepath.Join(t.TempDir(), "data.db"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, ProviderNominatim, cfg.Geocoding.Provider)
	assert.Equal(t, ProviderOSRM, cfg.Routing.Provider)
	assert.Equal(t, "ph", cfg.Geocoding.Country)
	assert.Equal(t, 5, cfg.Geocoding.Limit)
	assert.Equal(t, 450*time.Millisecond, cfg.Planner.Debounce)
	assert.Equal(t, 3, cfg.Planner.MinQueryLength)
	assert.Equal(t, 768, cfg.Planner.MobileBreakpoint)
	assert.True(t, cfg.Routing.Cache)
	assert.Equal(t, 30*24*time.Hour, cfg.Routing.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Planner.IdleTimeout)
	assert.Equal(t, "filltrip_session", cfg.Session.CookieName)
	assert.Equal(t, 10*time.Minute, cfg.Session.PurgeInterval)
	assert.Equal(t, LocatorIP, cfg.Geolocation.Provider)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": "0.0.0.0:9000"},
		"database": {"path": "/tmp/filltrip-test.db"},
		"geocoding": {"provider": "mapbox", "country": "us"},
		"mapbox": {"token": "pk.test"},
		"planner": {"debounce": "200ms"}
	}`)
	t.Setenv("FILLTRIP_SERVER_ADDR", "127.0.0.1:7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/filltrip-test.db", cfg.Database.Path)
	assert.Equal(t, ProviderMapbox, cfg.Geocoding.Provider)
	assert.Equal(t, "us", cfg.Geocoding.Country)
	assert.Equal(t, "pk.test", cfg.Mapbox.Token)
	assert.Equal(t, 200*time.Millisecond, cfg.Planner.Debounce)
}

func TestLoadRejectsMapboxWithoutToken(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/tmp/x.db"}, "routing": {"provider": "mapbox"}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapbox.token")
}

func TestValidate(t *testing.T) {
	base := Config{
		Geocoding:   GeocodingConfig{Provider: ProviderNominatim, Limit: 5},
		Routing:     RoutingConfig{Provider: ProviderOSRM},
		Geolocation: LocatorConfig{Provider: LocatorIP},
		Planner:     PlannerConfig{MinQueryLength: 3},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Geocoding.Provider = "google"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Routing.Provider = "graphhopper"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Geolocation.Provider = "gps"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Geocoding.Limit = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Planner.MinQueryLength = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Routing.CacheTTL = -time.Hour
	assert.Error(t, bad.Validate())
}
