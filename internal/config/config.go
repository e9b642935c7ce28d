// Package config provides configuration management for the editor service.
// Values come from defaults, then an optional TOML file, then EDITOR_*
// environment variables (a .env file in the working directory is loaded first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort          = 8790
	DefaultBind          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "auto"
	DefaultDataDir       = ".videoeditor"
	DefaultStore         = StoreSQLite
	DefaultFPS           = 30
	DefaultPollInterval  = 2 * time.Second
	DefaultRenderTimeout = 60 * time.Second
	DefaultAuthMode      = AuthToken
	DefaultAuthUserID    = "local"

	// Environment variable names
	EnvConfigFile     = "EDITOR_CONFIG"
	EnvPort           = "EDITOR_PORT"
	EnvBind           = "EDITOR_BIND"
	EnvLogLevel       = "EDITOR_LOG_LEVEL"
	EnvLogFormat      = "EDITOR_LOG_FORMAT"
	EnvDataDir        = "EDITOR_DATA_DIR"
	EnvStore          = "EDITOR_STORE"
	EnvFPS            = "EDITOR_FPS"
	EnvRenderURL      = "EDITOR_RENDER_URL"
	EnvRenderToken    = "EDITOR_RENDER_TOKEN"
	EnvRenderPoll     = "EDITOR_RENDER_POLL_INTERVAL"
	EnvRenderTimeout  = "EDITOR_RENDER_TIMEOUT"
	EnvAuthMode       = "EDITOR_AUTH_MODE"
	EnvAuthToken      = "EDITOR_AUTH_TOKEN"
	EnvAuthUserID     = "EDITOR_AUTH_USER_ID"
	EnvAuthSessionURL = "EDITOR_AUTH_SESSION_URL"
	EnvFFProbePath    = "EDITOR_FFPROBE_PATH"

	// Database filename
	DBFilename = "editor.db"

	StoreSQLite = "sqlite"
	StoreFile   = "file"

	AuthToken   = "token"
	AuthSession = "session"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	Bind() string
	Addr() string
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	SnapshotDir() string
	ExportDir() string
	Store() string
	FPS() int
	RenderURL() string
	RenderToken() string
	RenderPollInterval() time.Duration
	RenderTimeout() time.Duration
	AuthMode() string
	AuthToken() string
	AuthUserID() string
	AuthSessionURL() string
	FFProbePath() string
}

// fileConfig mirrors the TOML layout. Zero values mean "not set".
type fileConfig struct {
	Port      int    `toml:"port"`
	Bind      string `toml:"bind"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	DataDir   string `toml:"data_dir"`
	Store     string `toml:"store"`
	FPS       int    `toml:"fps"`

	Render struct {
		URL          string `toml:"url"`
		Token        string `toml:"token"`
		PollInterval string `toml:"poll_interval"`
		Timeout      string `toml:"timeout"`
	} `toml:"render"`

	Auth struct {
		Mode       string `toml:"mode"`
		Token      string `toml:"token"`
		UserID     string `toml:"user_id"`
		SessionURL string `toml:"session_url"`
	} `toml:"auth"`

	FFProbePath string `toml:"ffprobe_path"`
}

// EnvConfig is the resolved configuration.
type EnvConfig struct {
	port      int
	bind      string
	logLevel  string
	logFormat string
	dataDir   string
	store     string
	fps       int

	renderURL     string
	renderToken   string
	renderPoll    time.Duration
	renderTimeout time.Duration

	authMode       string
	authToken      string
	authUserID     string
	authSessionURL string

	ffprobePath string
}

// New creates a new EnvConfig with defaults, the optional config file and
// environment variable overrides.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &EnvConfig{
		port:          DefaultPort,
		bind:          DefaultBind,
		logLevel:      DefaultLogLevel,
		logFormat:     DefaultLogFormat,
		dataDir:       defaultDataDir(),
		store:         DefaultStore,
		fps:           DefaultFPS,
		renderPoll:    DefaultPollInterval,
		renderTimeout: DefaultRenderTimeout,
		authMode:      DefaultAuthMode,
		authUserID:    DefaultAuthUserID,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setInt(&c.port, fc.Port)
	setString(&c.bind, fc.Bind)
	setString(&c.logLevel, fc.LogLevel)
	setString(&c.logFormat, fc.LogFormat)
	setString(&c.dataDir, fc.DataDir)
	setString(&c.store, fc.Store)
	setInt(&c.fps, fc.FPS)
	setString(&c.renderURL, fc.Render.URL)
	setString(&c.renderToken, fc.Render.Token)
	setString(&c.authMode, fc.Auth.Mode)
	setString(&c.authToken, fc.Auth.Token)
	setString(&c.authUserID, fc.Auth.UserID)
	setString(&c.authSessionURL, fc.Auth.SessionURL)
	setString(&c.ffprobePath, fc.FFProbePath)

	if fc.Render.PollInterval != "" {
		d, err := time.ParseDuration(fc.Render.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid render.poll_interval: %w", err)
		}
		c.renderPoll = d
	}
	if fc.Render.Timeout != "" {
		d, err := time.ParseDuration(fc.Render.Timeout)
		if err != nil {
			return fmt.Errorf("invalid render.timeout: %w", err)
		}
		c.renderTimeout = d
	}
	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if f := os.Getenv(EnvFPS); f != "" {
		fps, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvFPS, err)
		}
		c.fps = fps
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{EnvRenderPoll, &c.renderPoll},
		{EnvRenderTimeout, &c.renderTimeout},
	} {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	setString(&c.bind, os.Getenv(EnvBind))
	setString(&c.logLevel, os.Getenv(EnvLogLevel))
	setString(&c.logFormat, os.Getenv(EnvLogFormat))
	setString(&c.dataDir, os.Getenv(EnvDataDir))
	setString(&c.store, os.Getenv(EnvStore))
	setString(&c.renderURL, os.Getenv(EnvRenderURL))
	setString(&c.renderToken, os.Getenv(EnvRenderToken))
	setString(&c.authMode, os.Getenv(EnvAuthMode))
	setString(&c.authToken, os.Getenv(EnvAuthToken))
	setString(&c.authUserID, os.Getenv(EnvAuthUserID))
	setString(&c.authSessionURL, os.Getenv(EnvAuthSessionURL))
	setString(&c.ffprobePath, os.Getenv(EnvFFProbePath))
	return nil
}

func (c *EnvConfig) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}
	if c.fps <= 0 {
		return fmt.Errorf("invalid fps %d: must be positive", c.fps)
	}
	if c.renderPoll <= 0 || c.renderTimeout <= 0 {
		return fmt.Errorf("render poll interval and timeout must be positive")
	}

	c.store = strings.ToLower(c.store)
	if c.store != StoreSQLite && c.store != StoreFile {
		return fmt.Errorf("invalid store %q: want %s or %s", c.store, StoreSQLite, StoreFile)
	}

	c.logFormat = strings.ToLower(c.logFormat)
	switch c.logFormat {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.logFormat)
	}

	if c.renderURL != "" {
		if u, err := url.Parse(c.renderURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid render url %q", c.renderURL)
		}
	}

	switch strings.ToLower(c.authMode) {
	case AuthToken:
		c.authMode = AuthToken
	case AuthSession:
		c.authMode = AuthSession
		if c.authSessionURL == "" {
			return fmt.Errorf("%s is required in session auth mode", EnvAuthSessionURL)
		}
	default:
		return fmt.Errorf("invalid auth mode %q: want %s or %s", c.authMode, AuthToken, AuthSession)
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

func (c *EnvConfig) Bind() string {
	return c.bind
}

// Addr is the listen address for the HTTP server.
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns json, text or auto.
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// SnapshotDir is where the file store keeps timeline documents.
func (c *EnvConfig) SnapshotDir() string {
	return filepath.Join(c.dataDir, "snapshots")
}

func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// Store returns the snapshot backend, sqlite or file.
func (c *EnvConfig) Store() string {
	return c.store
}

func (c *EnvConfig) FPS() int {
	return c.fps
}

// RenderURL is the render service base URL. Empty selects the in-process stub.
func (c *EnvConfig) RenderURL() string {
	return c.renderURL
}

func (c *EnvConfig) RenderToken() string {
	return c.renderToken
}

func (c *EnvConfig) RenderPollInterval() time.Duration {
	return c.renderPoll
}

func (c *EnvConfig) RenderTimeout() time.Duration {
	return c.renderTimeout
}

func (c *EnvConfig) AuthMode() string {
	return c.authMode
}

// AuthToken is the static bearer token. Empty means the service generates
// one on first start and keeps it in its database.
func (c *EnvConfig) AuthToken() string {
	return c.authToken
}

// AuthUserID is the user every token-authenticated request acts as.
func (c *EnvConfig) AuthUserID() string {
	return c.authUserID
}

func (c *EnvConfig) AuthSessionURL() string {
	return c.authSessionURL
}

// FFProbePath overrides the ffprobe lookup on PATH.
func (c *EnvConfig) FFProbePath() string {
	return c.ffprobePath
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

var _ Config = (*EnvConfig)(nil)

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
