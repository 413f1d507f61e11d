// Package config reads EMOJI_BRIDGE_* environment variables, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "EMOJI_BRIDGE_"

const (
	DefaultStudioURL      = "https://app.emojistudio.xyz"
	DefaultDedupWindow    = 5 * time.Second
	DefaultNotifyDebounce = 10 * time.Second
	DefaultPendingTTL     = 30 * time.Second
	DefaultSweepInterval  = 10 * time.Second
	DefaultUploadInterval = 500 * time.Millisecond
	DefaultAutoSync       = 24 * time.Hour
)

type Config struct {
	DBPath      string
	EmojisCache string
	LogLevel    string

	DedupWindow    time.Duration
	NotifyDebounce time.Duration
	PendingTTL     time.Duration
	SweepInterval  time.Duration
	UploadInterval time.Duration
	AutoSync       time.Duration

	UserAgent   string
	ProxyURL    string
	Fingerprint bool

	ChromeBin   string
	ControlURL  string
	UserDataDir string
	Headless    bool
	StudioURL   string

	// UploadTool gates the upload MCP tools: empty disables them, "true"
	// enables all workspaces, otherwise a comma list or "!"-prefixed denylist.
	UploadTool string

	// MCP server
	Host      string
	Port      string
	SSEAPIKey string
}

// Load reads the optional .env files and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:      getString("DB", "emoji-bridge.db"),
		EmojisCache: getString("EMOJIS_CACHE", ".emojis_cache.json"),
		LogLevel:    getString("LOG_LEVEL", "info"),
		UserAgent:   getString("USER_AGENT", ""),
		ProxyURL:    getString("PROXY", ""),
		ChromeBin:   getString("CHROME_BIN", ""),
		ControlURL:  getString("CHROME_URL", ""),
		UserDataDir: getString("USER_DATA_DIR", ""),
		StudioURL:   strings.TrimRight(getString("STUDIO_URL", DefaultStudioURL), "/"),
		UploadTool:  getString("UPLOAD_TOOL", ""),
		Host:        getString("HOST", "127.0.0.1"),
		Port:        getString("PORT", "13080"),
		SSEAPIKey:   getString("SSE_API_KEY", ""),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"DEDUP_WINDOW", DefaultDedupWindow, &cfg.DedupWindow},
		{"NOTIFY_DEBOUNCE", DefaultNotifyDebounce, &cfg.NotifyDebounce},
		{"PENDING_TTL", DefaultPendingTTL, &cfg.PendingTTL},
		{"SWEEP_INTERVAL", DefaultSweepInterval, &cfg.SweepInterval},
		{"UPLOAD_INTERVAL", DefaultUploadInterval, &cfg.UploadInterval},
		{"AUTO_SYNC", DefaultAutoSync, &cfg.AutoSync},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.Fingerprint, err = getBool("UTLS", true); err != nil {
		return nil, err
	}
	if cfg.Headless, err = getBool("HEADLESS", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the lower bounds Slack and the capture windows rely on.
func (c *Config) Validate() error {
	if c.UploadInterval < DefaultUploadInterval {
		return fmt.Errorf("%sUPLOAD_INTERVAL must be at least %s, got %s", envPrefix, DefaultUploadInterval, c.UploadInterval)
	}
	if c.SweepInterval < DefaultSweepInterval {
		return fmt.Errorf("%sSWEEP_INTERVAL must be at least %s, got %s", envPrefix, DefaultSweepInterval, c.SweepInterval)
	}
	if c.DedupWindow <= 0 || c.NotifyDebounce <= 0 || c.PendingTTL <= 0 {
		return errors.New("capture windows must be positive")
	}
	if c.DBPath == "" {
		return fmt.Errorf("%sDB must not be empty", envPrefix)
	}
	return nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := getString(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
	}
	return b, nil
}
