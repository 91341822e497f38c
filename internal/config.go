package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mediacheck/internal/media"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Collection CollectionConfig  `yaml:"collection"`
	Media      MediaConfig       `yaml:"media"`
	Latex      LatexConfig       `yaml:"latex"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Collection.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	if err := c.Latex.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// Language selects the language of check warnings (BCP 47, e.g. "fr").
	Language string `yaml:"language"`
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

// CollectionConfig locates the note collection.
type CollectionConfig struct {
	Path string `yaml:"path"`
	// NoteTypesFile optionally seeds note types from YAML at startup.
	NoteTypesFile string `yaml:"notetypes_file"`
}

// Validate validates the collection configuration.
func (c *CollectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LockPath returns the file locked while a check runs.
func (c *CollectionConfig) LockPath() string {
	return c.Path + ".lock"
}

// MediaDBPath returns the media metadata database beside the collection.
func (c *CollectionConfig) MediaDBPath() string {
	return filepath.Join(filepath.Dir(c.Path), "media.db")
}

// MediaConfig controls the media folder and how it is checked.
type MediaConfig struct {
	Dir               string        `yaml:"dir"`
	NFCPolicy         string        `yaml:"nfc_policy"`
	IncludeRemote     bool          `yaml:"include_remote"`
	MaxPasses         int           `yaml:"max_passes"`
	WatchDebounce     time.Duration `yaml:"watch_debounce"`
	ReferencePatterns []string      `yaml:"reference_patterns"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	if c.NFCPolicy == "" {
		c.NFCPolicy = string(media.NFCAuto)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.NFCPolicy, validation.In(string(media.NFCAuto), string(media.NFCEnforce), string(media.NFCSkip))),
		validation.Field(&c.MaxPasses, validation.Min(0), validation.Max(100)),
		validation.Field(&c.WatchDebounce, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if len(c.ReferencePatterns) > 0 {
		if _, err := media.CompilePatterns(c.ReferencePatterns); err != nil {
			return fmt.Errorf("media: reference_patterns: %w", err)
		}
	}
	return nil
}

// LatexConfig controls image generation for LaTeX markers.
type LatexConfig struct {
	// Build enables compiling images that are not cached yet.
	Build          bool          `yaml:"build"`
	Latex          string        `yaml:"latex"`
	Dvipng         string        `yaml:"dvipng"`
	Dvisvgm        string        `yaml:"dvisvgm"`
	Timeout        time.Duration `yaml:"timeout"`
	ClearFixedTags bool          `yaml:"clear_fixed_tags"`
}

// Validate validates the LaTeX configuration.
func (c *LatexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			Language: "en",
		},
		Collection: CollectionConfig{
			Path: "./collection.db",
		},
		Media: MediaConfig{
			Dir:           "./media",
			NFCPolicy:     string(media.NFCAuto),
			MaxPasses:     media.DefaultMaxPasses,
			WatchDebounce: media.DefaultDebounce,
		},
		Latex: LatexConfig{
			Build:   true,
			Latex:   "latex",
			Dvipng:  "dvipng",
			Dvisvgm: "dvisvgm",
			Timeout: time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
