// Package config loads infradesk settings from an optional YAML file and
// INFRADESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"infradesk/internal/domain"
	"infradesk/internal/ingest"
	"infradesk/internal/service"
)

// EnvPrefix prefixes every environment override, e.g. INFRADESK_LOG_LEVEL.
const EnvPrefix = "INFRADESK"

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	DataDir     string                      `mapstructure:"data_dir"`
	Storage     StorageConfig               `mapstructure:"storage"`
	Log         LogConfig                   `mapstructure:"log"`
	Ingest      IngestConfig                `mapstructure:"ingest"`
	Maintenance MaintenanceConfig           `mapstructure:"maintenance"`
	MCP         MCPConfig                   `mapstructure:"mcp"`
	Secrets     SecretsConfig               `mapstructure:"secrets"`
	Schemas     []domain.Schema             `mapstructure:"schemas"`
	Connections []domain.DatabaseConnection `mapstructure:"connections"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestConfig holds the inbox watcher settings and per-dataset profiles.
type IngestConfig struct {
	Inbox    string                   `mapstructure:"inbox"`
	Debounce time.Duration            `mapstructure:"debounce"`
	Profiles map[string]ProfileConfig `mapstructure:"profiles"`
}

// ProfileConfig is the ingest profile of one dataset. Header renames are a
// list because configuration keys are case-insensitive and header names
// are not.
type ProfileConfig struct {
	HeaderMap  []HeaderRename `mapstructure:"header_map"`
	KeyColumns []string       `mapstructure:"key_columns"`
}

type HeaderRename struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

type MaintenanceConfig struct {
	RepairSchedule string `mapstructure:"repair_schedule"`
}

type MCPConfig struct {
	AllowDestructive bool `mapstructure:"allow_destructive"`
}

type SecretsConfig struct {
	Backend string `mapstructure:"backend"`
}

// DefaultPath returns $HOME/.config/infradesk/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "infradesk", "config.yaml")
}

// DefaultDataDir returns $HOME/.local/share/infradesk.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "infradesk")
}

// SetDefaults registers every key with its default so environment
// overrides apply even when the file omits the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.backend", BackendFS)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("ingest.inbox", "")
	v.SetDefault("ingest.debounce", "500ms")
	v.SetDefault("maintenance.repair_schedule", "")
	v.SetDefault("mcp.allow_destructive", false)
	v.SetDefault("secrets.backend", "env")
}

// Load reads the configuration. An explicit path must exist; the default
// path is optional. fs may be nil to use the OS filesystem.
func Load(path string, fs afero.Fs) (*Config, error) {
	v := viper.New()
	if fs != nil {
		v.SetFs(fs)
	} else {
		fs = afero.NewOsFs()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if ok, _ := afero.Exists(fs, path); ok || explicit {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendFS, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	for i, s := range c.Schemas {
		if err := service.ValidateDatasetName(s.Name); err != nil {
			errs = append(errs, fmt.Errorf("schemas[%d]: %w", i, err))
		}
	}
	seen := make(map[string]bool)
	for i, conn := range c.Connections {
		if conn.Name == "" {
			errs = append(errs, fmt.Errorf("connections[%d]: name is required", i))
		} else if seen[conn.Name] {
			errs = append(errs, fmt.Errorf("connections[%d]: duplicate name %q", i, conn.Name))
		}
		seen[conn.Name] = true
	}
	return errors.Join(errs...)
}

// Profiles converts the configured ingest profiles into ingest options
// keyed by dataset.
func (c *Config) Profiles() map[string]ingest.Options {
	out := make(map[string]ingest.Options, len(c.Ingest.Profiles))
	for dataset, p := range c.Ingest.Profiles {
		opts := ingest.Options{KeyColumns: p.KeyColumns}
		if len(p.HeaderMap) > 0 {
			opts.HeaderMap = make(map[string]string, len(p.HeaderMap))
			for _, r := range p.HeaderMap {
				opts.HeaderMap[r.From] = r.To
			}
		}
		out[dataset] = opts
	}
	return out
}

// Watch returns the inbox watcher settings.
func (c *Config) Watch() service.WatchConfig {
	return service.WatchConfig{
		Inbox:          c.Ingest.Inbox,
		Debounce:       c.Ingest.Debounce,
		RepairSchedule: c.Maintenance.RepairSchedule,
	}
}

// DatasetDir is where the fs backend keeps dataset files.
func (c *Config) DatasetDir() string {
	return filepath.Join(c.DataDir, "datasets")
}

// DBPath is the SQLite file holding the run log and, for the sqlite
// backend, the datasets.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "infradesk.db")
}
