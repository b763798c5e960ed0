package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Workshop WorkshopConfig    `yaml:"workshop"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Save     SaveConfig        `yaml:"save"`
	SSE      SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workshop.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Save.Validate(); err != nil {
		return err
	}
	return c.SSE.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkshopConfig holds the path to the workshop data directory. Blobs
// (assets, snapshots, thumbnails) live under <path>/blobs.
type WorkshopConfig struct {
	Path string `yaml:"path"`
}

// BlobsPath returns the blob store root.
func (c *WorkshopConfig) BlobsPath() string {
	return filepath.Join(c.Path, "blobs")
}

// Validate validates the workshop configuration.
func (c *WorkshopConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SaveConfig tunes the project save coordinator.
type SaveConfig struct {
	AutosaveIntervalSecs int  `yaml:"autosave_interval_secs"`
	DeferThumbnails      bool `yaml:"defer_thumbnails"`
	SkipUnloadConfirm    bool `yaml:"skip_unload_confirm"`
}

// AutosaveInterval returns the debounce delay between an edit and the
// autosave attempt.
func (c *SaveConfig) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSecs) * time.Second
}

// Validate validates the save configuration.
func (c *SaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutosaveIntervalSecs, validation.Required, validation.Min(1), validation.Max(3600)),
	)
}

// SSEConfig holds server-sent-events configuration.
type SSEConfig struct {
	CatalogThrottleSecs int `yaml:"catalog_throttle_secs"`
}

// CatalogThrottle returns the minimum gap between catalog.updated events.
func (c *SSEConfig) CatalogThrottle() time.Duration {
	return time.Duration(c.CatalogThrottleSecs) * time.Second
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CatalogThrottleSecs, validation.Min(0), validation.Max(600)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workshop: WorkshopConfig{
			Path: "./workshop",
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Save: SaveConfig{
			AutosaveIntervalSecs: 10,
		},
		SSE: SSEConfig{
			CatalogThrottleSecs: 2,
		},
	}
}
