package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"filltrip/internal/database"
)

const envPrefix = "FILLTRIP"

// Provider names accepted for geocoding.provider and routing.provider
const (
	ProviderMapbox    = "mapbox"
	ProviderNominatim = "nominatim"
	ProviderOSRM      = "osrm"

	LocatorIP     = "ip"
	LocatorStatic = "static"
	LocatorNone   = "none"
)

// Config holds every tunable of the planner service
type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Log         LogConfig       `mapstructure:"log"`
	Geocoding   GeocodingConfig `mapstructure:"geocoding"`
	Routing     RoutingConfig   `mapstructure:"routing"`
	Mapbox      MapboxConfig    `mapstructure:"mapbox"`
	Nominatim   EndpointConfig  `mapstructure:"nominatim"`
	OSRM        EndpointConfig  `mapstructure:"osrm"`
	Geolocation LocatorConfig   `mapstructure:"geolocation"`
	Planner     PlannerConfig   `mapstructure:"planner"`
	Session     SessionConfig   `mapstructure:"session"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type GeocodingConfig struct {
	Provider  string        `mapstructure:"provider"`
	Country   string        `mapstructure:"country"`
	Limit     int           `mapstructure:"limit"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type RoutingConfig struct {
	Provider string        `mapstructure:"provider"`
	Cache    bool          `mapstructure:"cache"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type MapboxConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// EndpointConfig is a base URL for a keyless public API
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// LocatorConfig selects how Locate events are answered. The static
// provider always reports Lat/Lng.
type LocatorConfig struct {
	Provider string  `mapstructure:"provider"`
	BaseURL  string  `mapstructure:"base_url"`
	Lat      float64 `mapstructure:"lat"`
	Lng      float64 `mapstructure:"lng"`
}

type PlannerConfig struct {
	Debounce         time.Duration `mapstructure:"debounce"`
	MinQueryLength   int           `mapstructure:"min_query_length"`
	MobileBreakpoint int           `mapstructure:"mobile_breakpoint"`
	// IdleTimeout closes planners nobody has touched for this long
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	Secure        bool          `mapstructure:"secure"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("database.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("geocoding.provider", ProviderNominatim)
	v.SetDefault("geocoding.country", "ph")
	v.SetDefault("geocoding.limit", 5)
	v.SetDefault("geocoding.cache_size", 512)
	v.SetDefault("geocoding.cache_ttl", 10*time.Minute)

	v.SetDefault("routing.provider", ProviderOSRM)
	v.SetDefault("routing.cache", true)
	v.SetDefault("routing.cache_ttl", 30*24*time.Hour)

	v.SetDefault("mapbox.token", "")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("osrm.base_url", "https://router.project-osrm.org")
	v.SetDefault("geolocation.provider", LocatorIP)
	v.SetDefault("geolocation.base_url", "http://ip-api.com")

	v.SetDefault("planner.debounce", 450*time.Millisecond)
	v.SetDefault("planner.min_query_length", 3)
	v.SetDefault("planner.mobile_breakpoint", 768)
	v.SetDefault("planner.idle_timeout", 30*time.Minute)

	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_name", "filltrip_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.purge_interval", 10*time.Minute)
}

// Load reads defaults, then the JSON config file (if present), then
// FILLTRIP_* environment variables. An empty path means ~/.filltrip/config.json.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		defaultPath, err := database.GetConfigFilePath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Database.Path == "" {
		dbPath, err := database.GetDefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Geocoding.Provider {
	case ProviderMapbox, ProviderNominatim:
	default:
		return fmt.Errorf("unknown geocoding provider %q", c.Geocoding.Provider)
	}

	switch c.Routing.Provider {
	case ProviderMapbox, ProviderOSRM:
	default:
		return fmt.Errorf("unknown routing provider %q", c.Routing.Provider)
	}

	switch c.Geolocation.Provider {
	case LocatorIP, LocatorStatic, LocatorNone:
	default:
		return fmt.Errorf("unknown geolocation provider %q", c.Geolocation.Provider)
	}

	usesMapbox := c.Geocoding.Provider == ProviderMapbox || c.Routing.Provider == ProviderMapbox
	if usesMapbox && c.Mapbox.Token == "" {
		return errors.New("mapbox.token is required when a mapbox provider is selected")
	}

	if c.Geocoding.Limit <= 0 {
		return fmt.Errorf("geocoding.limit must be positive, got %d", c.Geocoding.Limit)
	}
	if c.Planner.MinQueryLength < 1 {
		return fmt.Errorf("planner.min_query_length must be at least 1, got %d", c.Planner.MinQueryLength)
	}
	if c.Planner.Debounce < 0 {
		return fmt.Errorf("planner.debounce must not be negative")
	}
	if c.Routing.CacheTTL < 0 {
		return fmt.Errorf("routing.cache_ttl must not be negative")
	}
	return nil
}
