// Package config handles the XDG configuration directory and settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// AppName is the application directory name.
	AppName = "taskhub"

	// EnvFile holds KEY=value settings inside the config directory.
	EnvFile = "config.env"

	// SessionFile is the stored session cookie filename.
	SessionFile = "session.json"
)

// Setting keys, read from EnvFile and the process environment.
const (
	KeyAPIURL     = "TASKHUB_API_URL"
	KeyTimeout    = "TASKHUB_TIMEOUT"
	KeyRetryDelay = "TASKHUB_RETRY_DELAY"
	KeyRateLimit  = "TASKHUB_RATE_LIMIT"
	KeyPageSize   = "TASKHUB_PAGE_SIZE"
	KeyDebounce   = "TASKHUB_DEBOUNCE"
)

// Defaults.
const (
	DefaultAPIURL     = "http://localhost:8080/api"
	DefaultTimeout    = 10 * time.Second
	DefaultRetryDelay = time.Second
	DefaultPageSize   = 10
	DefaultDebounce   = 500 * time.Millisecond
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// APIURL is the base address of the task API.
	APIURL string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RetryDelay is the wait before replaying a throttled request.
	RetryDelay time.Duration

	// RateLimit caps outgoing requests per second. Zero disables it.
	RateLimit float64

	// PageSize is the number of tasks per page.
	PageSize int

	// Debounce is the quiet period before a search in browse mode loads.
	Debounce time.Duration
}

// New creates a Config for the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskhub or $HOME/.config/taskhub.
// Settings come from config.env in that directory, overridden by the
// process environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	c := &Config{
		Dir:        dir,
		APIURL:     DefaultAPIURL,
		Timeout:    DefaultTimeout,
		RetryDelay: DefaultRetryDelay,
		PageSize:   DefaultPageSize,
		Debounce:   DefaultDebounce,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) load() error {
	file, err := godotenv.Read(c.EnvPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", EnvFile, err)
		}
		file = map[string]string{}
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(file[key])
	}

	if v := lookup(KeyAPIURL); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if err := parseDuration(lookup(KeyTimeout), KeyTimeout, &c.Timeout); err != nil {
		return err
	}
	if err := parseDuration(lookup(KeyRetryDelay), KeyRetryDelay, &c.RetryDelay); err != nil {
		return err
	}
	if err := parseDuration(lookup(KeyDebounce), KeyDebounce, &c.Debounce); err != nil {
		return err
	}
	if v := lookup(KeyRateLimit); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", KeyRateLimit, v)
		}
		c.RateLimit = n
	}
	if v := lookup(KeyPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s: %q", KeyPageSize, v)
		}
		c.PageSize = n
	}
	return nil
}

func parseDuration(v, key string, dst *time.Duration) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = d
	return nil
}

// EnvPath returns the path to the settings file.
func (c *Config) EnvPath() string {
	return filepath.Join(c.Dir, EnvFile)
}

// SessionPath returns the path to the stored session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasSession checks if the session file exists.
func (c *Config) HasSession() bool {
	_, err := os.Stat(c.SessionPath())
	return err == nil
}
