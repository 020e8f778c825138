package config

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const appDirName = "tvsync"

// Source is a remote catalog endpoint. Sources are tried in slice order.
type Source struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	ProbeURL string `json:"probe_url,omitempty"`
	// TokenURL and ClientID enable refreshing an expired stored credential.
	TokenURL string `json:"token_url,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Config holds basic runtime configuration.
type Config struct {
	AppName           string
	ConfigDir         string
	DataDir           string
	RuntimeDir        string
	SocketPath        string
	DatabasePath      string
	SnapshotPath      string
	ImportDir         string
	Sources           []Source
	SyncTimeout       time.Duration
	ProbeTimeout      time.Duration
	ProbeCacheTTL     time.Duration
	SkewThreshold     time.Duration
	AutoSyncInterval  time.Duration
	FetchRetries      int
	MetricsAddr       string
	EventLogSize      int
	TriggerQueueSize  int
	LogLevel          string
	ConfigFile        string
	LogFilePath       string
	LogFileMaxMB      int
	LogFileMaxBackups int
	LogFileMaxAgeDays int
}

// NewConfig builds a default config from XDG paths and environment.
func NewConfig() (*Config, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		var err error
		configHome, err = os.UserConfigDir()
		if err != nil {
			return nil, err
		}
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		runtimeDir = filepath.Join(home, ".cache")
	}

	if configHome == "" || dataHome == "" {
		return nil, errors.New("unable to resolve XDG directories")
	}

	configDir := filepath.Join(configHome, appDirName)
	dataDir := filepath.Join(dataHome, appDirName)
	socketPath := filepath.Join(runtimeDir, appDirName, "daemon.sock")

	return &Config{
		AppName:           appDirName,
		ConfigDir:         configDir,
		DataDir:           dataDir,
		RuntimeDir:        runtimeDir,
		SocketPath:        socketPath,
		DatabasePath:      filepath.Join(dataDir, "catalog.db"),
		SnapshotPath:      filepath.Join(dataDir, "snapshot", "catalog.json"),
		ImportDir:         filepath.Join(dataDir, "import"),
		SyncTimeout:       60 * time.Second,
		ProbeTimeout:      5 * time.Second,
		ProbeCacheTTL:     30 * time.Second,
		SkewThreshold:     30 * time.Second,
		AutoSyncInterval:  6 * time.Hour,
		FetchRetries:      1,
		EventLogSize:      20,
		TriggerQueueSize:  64,
		LogLevel:          "info",
		LogFilePath:       filepath.Join(dataDir, "logs", "daemon.jsonl"),
		LogFileMaxMB:      10,
		LogFileMaxBackups: 5,
		LogFileMaxAgeDays: 7,
	}, nil
}

// Options defines runtime overrides for config resolution.
type Options struct {
	ConfigPath string
	LogLevel   string
	SocketPath string
}

type fileConfig struct {
	AppName           string   `json:"app_name"`
	ConfigDir         string   `json:"config_dir"`
	DataDir           string   `json:"data_dir"`
	RuntimeDir        string   `json:"runtime_dir"`
	SocketPath        string   `json:"socket_path"`
	DatabasePath      string   `json:"database_path"`
	SnapshotPath      string   `json:"snapshot_path"`
	ImportDir         string   `json:"import_dir"`
	Sources           []Source `json:"sources"`
	SyncTimeout       string   `json:"sync_timeout"`
	ProbeTimeout      string   `json:"probe_timeout"`
	ProbeCacheTTL     string   `json:"probe_cache_ttl"`
	SkewThreshold     string   `json:"skew_threshold"`
	AutoSyncInterval  string   `json:"auto_sync_interval"`
	FetchRetries      *int     `json:"fetch_retries"`
	MetricsAddr       string   `json:"metrics_addr"`
	EventLogSize      int      `json:"event_log_size"`
	TriggerQueueSize  int      `json:"trigger_queue_size"`
	LogLevel          string   `json:"log_level"`
	LogFilePath       string   `json:"log_file_path"`
	LogFileMaxMB      int      `json:"log_file_max_mb"`
	LogFileMaxBackups int      `json:"log_file_max_backups"`
	LogFileMaxAgeDays int      `json:"log_file_max_age_days"`
}

// NewConfigWithOptions resolves config and applies overrides from options and environment.
func NewConfigWithOptions(opts Options) (*Config, error) {
	cfg, err := NewConfig()
	if err != nil {
		return nil, err
	}

	if opts.ConfigPath != "" {
		if err := applyConfigFile(cfg, opts.ConfigPath); err != nil {
			return nil, err
		}
		cfg.ConfigFile = opts.ConfigPath
	}

	applyEnv(cfg)

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.SocketPath != "" {
		cfg.SocketPath = opts.SocketPath
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Name == "" {
			cfg.Sources[i].Name = sourceName(cfg.Sources[i].URL)
		}
	}

	return cfg, nil
}

func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.AppName != "" {
		cfg.AppName = fc.AppName
	}
	if fc.ConfigDir != "" {
		cfg.ConfigDir = fc.ConfigDir
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.RuntimeDir != "" {
		cfg.RuntimeDir = fc.RuntimeDir
	}
	if fc.SocketPath != "" {
		cfg.SocketPath = fc.SocketPath
	}
	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.SnapshotPath != "" {
		cfg.SnapshotPath = fc.SnapshotPath
	}
	if fc.ImportDir != "" {
		cfg.ImportDir = fc.ImportDir
	}
	if len(fc.Sources) > 0 {
		cfg.Sources = fc.Sources
	}
	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.SyncTimeout, &cfg.SyncTimeout},
		{fc.ProbeTimeout, &cfg.ProbeTimeout},
		{fc.ProbeCacheTTL, &cfg.ProbeCacheTTL},
		{fc.SkewThreshold, &cfg.SkewThreshold},
		{fc.AutoSyncInterval, &cfg.AutoSyncInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		val, err := time.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = val
	}
	if fc.FetchRetries != nil && *fc.FetchRetries >= 0 {
		cfg.FetchRetries = *fc.FetchRetries
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.EventLogSize > 0 {
		cfg.EventLogSize = fc.EventLogSize
	}
	if fc.TriggerQueueSize > 0 {
		cfg.TriggerQueueSize = fc.TriggerQueueSize
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFilePath != "" {
		cfg.LogFilePath = fc.LogFilePath
	}
	if fc.LogFileMaxMB > 0 {
		cfg.LogFileMaxMB = fc.LogFileMaxMB
	}
	if fc.LogFileMaxBackups > 0 {
		cfg.LogFileMaxBackups = fc.LogFileMaxBackups
	}
	if fc.LogFileMaxAgeDays > 0 {
		cfg.LogFileMaxAgeDays = fc.LogFileMaxAgeDays
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TVSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TVSYNC_LOG_FILE"); v != "" {
		cfg.LogFilePath = v
	}
	if v := os.Getenv("TVSYNC_LOG_MAX_MB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.LogFileMaxMB = i
		}
	}
	if v := os.Getenv("TVSYNC_LOG_MAX_BACKUPS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.LogFileMaxBackups = i
		}
	}
	if v := os.Getenv("TVSYNC_LOG_MAX_AGE_DAYS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.LogFileMaxAgeDays = i
		}
	}
	if v := os.Getenv("TVSYNC_SOCKET_PATH"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("TVSYNC_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TVSYNC_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("TVSYNC_IMPORT_DIR"); v != "" {
		cfg.ImportDir = v
	}
	if v := os.Getenv("TVSYNC_SOURCES"); v != "" {
		var sources []Source
		for _, raw := range splitList(v) {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			sources = append(sources, Source{Name: sourceName(raw), URL: raw})
		}
		if len(sources) > 0 {
			cfg.Sources = sources
		}
	}
	if v := os.Getenv("TVSYNC_SYNC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SyncTimeout = d
		}
	}
	if v := os.Getenv("TVSYNC_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ProbeTimeout = d
		}
	}
	if v := os.Getenv("TVSYNC_AUTO_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.AutoSyncInterval = d
		}
	}
	if v := os.Getenv("TVSYNC_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("TVSYNC_EVENT_LOG_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.EventLogSize = i
		}
	}
}

// sourceName derives a display name from a source URL, falling back to the raw value.
func sourceName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func splitList(val string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(val); i++ {
		if i == len(val) || val[i] == ',' {
			if i > start {
				out = append(out, val[start:i])
			}
			start = i + 1
		}
	}
	return out
}
