// Package config provides configuration management for the Heimdex editor agent.
// Configuration is loaded from environment variables, optionally seeded from a
// .env file, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	// Default values
	DefaultPort        = 8787
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".heimdex"
	DefaultFFmpegPath  = "ffmpeg"
	DefaultRateLimit   = 20.0
	DefaultSessionIdle = 30 * time.Minute
	DefaultRetention   = 7 * 24 * time.Hour
	DefaultRenderLimit = 2 * time.Hour

	// Environment variable names
	EnvPort         = "HEIMDEX_PORT"
	EnvLogLevel     = "HEIMDEX_LOG_LEVEL"
	EnvDataDir      = "HEIMDEX_DATA_DIR"
	EnvDBPath       = "HEIMDEX_DB_PATH"
	EnvHeadless     = "HEIMDEX_HEADLESS"
	EnvRedisAddr    = "HEIMDEX_REDIS_ADDR"
	EnvFFmpegPath   = "HEIMDEX_FFMPEG_PATH"
	EnvExportDir    = "HEIMDEX_EXPORT_DIR"
	EnvRateLimit    = "HEIMDEX_RATE_LIMIT"
	EnvSessionIdle  = "HEIMDEX_SESSION_IDLE"
	EnvJobRetention = "HEIMDEX_JOB_RETENTION"
	EnvPreviewMode  = "HEIMDEX_PREVIEW_MODE"
	EnvRenderLimit  = "HEIMDEX_RENDER_TIMEOUT"

	// EnvFile is read from the working directory when present.
	EnvFile = ".env"

	// Database filename
	DBFilename = "heimdex-editor.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	Headless() bool
	RedisAddr() string
	FFmpegPath() string
	RenderTimeout() time.Duration
	RateLimit() float64
	SessionIdle() time.Duration
	JobRetention() time.Duration
	PreviewMode() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	dbPath        string
	exportDir     string
	headless      bool
	redisAddr     string
	ffmpegPath    string
	renderTimeout time.Duration
	rateLimit     float64
	sessionIdle   time.Duration
	jobRetention  time.Duration
	previewMode   bool
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// Variables already set in the environment win over the .env file.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		ffmpegPath:    DefaultFFmpegPath,
		renderTimeout: DefaultRenderLimit,
		rateLimit:     DefaultRateLimit,
		sessionIdle:   DefaultSessionIdle,
		jobRetention:  DefaultRetention,
		previewMode:   true,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := cast.ToIntE(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if dp := os.Getenv(EnvDBPath); dp != "" {
		cfg.dbPath = dp
	}
	if ed := os.Getenv(EnvExportDir); ed != "" {
		cfg.exportDir = ed
	}
	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		cfg.ffmpegPath = fp
	}
	cfg.redisAddr = os.Getenv(EnvRedisAddr)

	var err error
	if cfg.headless, err = envBool(EnvHeadless, false); err != nil {
		return nil, err
	}
	if cfg.previewMode, err = envBool(EnvPreviewMode, true); err != nil {
		return nil, err
	}
	if cfg.sessionIdle, err = envDuration(EnvSessionIdle, DefaultSessionIdle); err != nil {
		return nil, err
	}
	if cfg.jobRetention, err = envDuration(EnvJobRetention, DefaultRetention); err != nil {
		return nil, err
	}
	if cfg.renderTimeout, err = envDuration(EnvRenderLimit, DefaultRenderLimit); err != nil {
		return nil, err
	}

	if rl := os.Getenv(EnvRateLimit); rl != "" {
		v, err := cast.ToFloat64E(rl)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvRateLimit)
		}
		cfg.rateLimit = v
	}

	return cfg, nil
}

func envBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	if c.dbPath != "" {
		return c.dbPath
	}
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir returns where EDLs and rendered cuts are written
func (c *EnvConfig) ExportDir() string {
	if c.exportDir != "" {
		return c.exportDir
	}
	return filepath.Join(c.dataDir, "exports")
}

// Headless disables the tray icon
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// RedisAddr enables the queued workflow dispatcher when set
func (c *EnvConfig) RedisAddr() string {
	return c.redisAddr
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) RenderTimeout() time.Duration {
	return c.renderTimeout
}

// RateLimit returns the allowed API requests per second
func (c *EnvConfig) RateLimit() float64 {
	return c.rateLimit
}

// SessionIdle returns how long an untouched editor session stays open
func (c *EnvConfig) SessionIdle() time.Duration {
	return c.sessionIdle
}

// JobRetention returns how long finished jobs are kept
func (c *EnvConfig) JobRetention() time.Duration {
	return c.jobRetention
}

// PreviewMode is the default preview mode of new sessions
func (c *EnvConfig) PreviewMode() bool {
	return c.previewMode
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

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
