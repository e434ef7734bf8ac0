package bulletin

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/remote"
)

// SiteConfig holds all configuration for a bulletin site.
type SiteConfig struct {
	Name        string `toml:"site_name"`        // Site name (default "Community")
	URL         string `toml:"site_url"`         // Canonical URL (default "http://localhost:3000")
	Description string `toml:"site_description"` // Meta description

	Addr         string `toml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `toml:"database_path"` // Local store SQLite path (default "data/bulletin.db")

	Backend      string        `toml:"backend"`       // "polling" (default) or "realtime"
	RemoteURL    string        `toml:"remote_url"`    // Polling base URL (default URL)
	DataPath     string        `toml:"data_path"`     // Polling resource path (default "/api/data")
	PollInterval time.Duration `toml:"-"`             // Viewer poll period (default 30s)

	RedisAddr     string `toml:"redis_addr"`     // Realtime backend (default "localhost:6379")
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"` // default "bulletin"

	ServeDataAPI bool   `toml:"serve_data_api"` // Mount the REST data API at /api (forced on when polling with the default remote_url)
	DataFile     string `toml:"data_file"`      // REST data document (default "data/data.json")

	AdminPassword string `toml:"admin_password"` // Required: admin login password
	SessionSecret string `toml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `toml:"cookie_secure"`  // Set true for HTTPS

	// Built-in page content shown until the backend or local store
	// provides something else.
	News     []content.NewsItem    `toml:"news"`
	Gallery  []content.GalleryItem `toml:"gallery"`
	VideoURL string                `toml:"video_url"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Community"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/bulletin.db"
	}
	if c.RemoteURL == "" {
		// A polling site with no remote of its own reads and writes its
		// own data API, so that API has to be mounted.
		c.RemoteURL = c.URL
		if kind, err := c.BackendKind(); err == nil && kind == remote.KindPolling {
			c.ServeDataAPI = true
		}
	}
	if c.DataPath == "" {
		c.DataPath = "/api/data"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = "bulletin"
	}
	if c.DataFile == "" {
		c.DataFile = "data/data.json"
	}
}

// BackendKind resolves the configured backend.
func (c SiteConfig) BackendKind() (remote.Kind, error) {
	return remote.ParseKind(c.Backend)
}

// fileConfig is the on-disk shape; durations are written as strings such
// as "30s".
type fileConfig struct {
	SiteConfig
	PollInterval string `toml:"poll_interval"`
}

// LoadConfig reads a TOML config file and applies BULLETIN_* environment
// overrides on top. An empty path reads the environment only.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("bulletin: read config: %w", err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(raw, &fc); err != nil {
			return cfg, fmt.Errorf("bulletin: parse config %s: %w", path, err)
		}
		cfg = fc.SiteConfig
		if fc.PollInterval != "" {
			d, err := time.ParseDuration(fc.PollInterval)
			if err != nil {
				return cfg, fmt.Errorf("bulletin: poll_interval: %w", err)
			}
			cfg.PollInterval = d
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	c.Name = EnvOr("BULLETIN_SITE_NAME", c.Name)
	c.URL = EnvOr("BULLETIN_SITE_URL", c.URL)
	c.Addr = EnvOr("BULLETIN_ADDR", c.Addr)
	c.DatabasePath = EnvOr("BULLETIN_DATABASE_PATH", c.DatabasePath)
	c.Backend = EnvOr("BULLETIN_BACKEND", c.Backend)
	c.RemoteURL = EnvOr("BULLETIN_REMOTE_URL", c.RemoteURL)
	c.RedisAddr = EnvOr("BULLETIN_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = EnvOr("BULLETIN_REDIS_PASSWORD", c.RedisPassword)
	c.DataFile = EnvOr("BULLETIN_DATA_FILE", c.DataFile)
	c.AdminPassword = EnvOr("BULLETIN_ADMIN_PASSWORD", c.AdminPassword)
	c.SessionSecret = EnvOr("BULLETIN_SESSION_SECRET", c.SessionSecret)

	if v := os.Getenv("BULLETIN_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("bulletin: BULLETIN_POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	for key, dst := range map[string]*bool{
		"BULLETIN_SERVE_DATA_API": &c.ServeDataAPI,
		"BULLETIN_COOKIE_SECURE":  &c.CookieSecure,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("bulletin: %s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *logrus.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithBackend uses b instead of the backend named in the config.
func WithBackend(b remote.Backend) Option {
	return func(a *App) {
		a.backend = b
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
