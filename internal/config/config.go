package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/Nomadcxx/animerge/internal/paths"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. ANIMERGE_SERVER_ADDR.
const EnvPrefix = "ANIMERGE"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Matching MatchingConfig `mapstructure:"matching"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig locates the SQLite store. Empty path means the default
// under the app directory.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MatchingConfig tunes duplicate detection.
type MatchingConfig struct {
	SimilarityThreshold float64           `mapstructure:"similarity_threshold"`
	RomanizationBridge  bool              `mapstructure:"romanization_bridge"`
	RequireTokenOverlap bool              `mapstructure:"require_token_overlap"`
	Aliases             map[string]string `mapstructure:"aliases"`
}

type DedupConfig struct {
	// LimitGroups caps groups merged per run; 0 means no limit.
	LimitGroups int `mapstructure:"limit_groups"`
}

// IngestConfig contains the drop directories for JSON record batches
type IngestConfig struct {
	WatchDir     string `mapstructure:"watch_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	FailedDir    string `mapstructure:"failed_dir"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// Token, when set, must be sent as a bearer token on every API call.
	Token string `mapstructure:"token"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	watchDir := ""
	if dir, err := paths.IngestDir(); err == nil {
		watchDir = dir
	}
	logFile := ""
	if f, err := paths.LogFile(); err == nil {
		logFile = f
	}

	return &Config{
		Database: DatabaseConfig{
			Path: "",
		},
		Matching: MatchingConfig{
			SimilarityThreshold: dedup.DefaultSimilarityThreshold,
			RomanizationBridge:  true,
			RequireTokenOverlap: true,
			Aliases:             map[string]string{},
		},
		Dedup: DedupConfig{
			LimitGroups: 0,
		},
		Ingest: IngestConfig{
			WatchDir:     watchDir,
			ProcessedDir: "",
			FailedDir:    "",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8787",
			CORSOrigins: []string{},
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       logFile,
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load loads configuration from the default path or returns defaults
func Load() (*Config, error) {
	configPath, err := paths.ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from path. A missing file yields defaults;
// ANIMERGE_* environment variables override either.
func LoadFrom(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	// Read config file if it exists
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override keys
// that are absent from the file.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("database.path", c.Database.Path)
	v.SetDefault("matching.similarity_threshold", c.Matching.SimilarityThreshold)
	v.SetDefault("matching.romanization_bridge", c.Matching.RomanizationBridge)
	v.SetDefault("matching.require_token_overlap", c.Matching.RequireTokenOverlap)
	v.SetDefault("dedup.limit_groups", c.Dedup.LimitGroups)
	v.SetDefault("ingest.watch_dir", c.Ingest.WatchDir)
	v.SetDefault("ingest.processed_dir", c.Ingest.ProcessedDir)
	v.SetDefault("ingest.failed_dir", c.Ingest.FailedDir)
	v.SetDefault("server.addr", c.Server.Addr)
	v.SetDefault("server.cors_origins", c.Server.CORSOrigins)
	v.SetDefault("server.token", c.Server.Token)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file", c.Logging.File)
	v.SetDefault("logging.max_size_mb", c.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if t := c.Matching.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("matching.similarity_threshold must be in (0, 1], got %v", t)
	}
	if c.Dedup.LimitGroups < 0 {
		return fmt.Errorf("dedup.limit_groups must not be negative, got %d", c.Dedup.LimitGroups)
	}
	return nil
}

// Save saves configuration to the default path
func (c *Config) Save() error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configFile)
}

// SaveTo writes configuration as commented TOML to configFile.
func (c *Config) SaveTo(configFile string) error {
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("unable to create config dir: %w", err)
	}

	content := c.ToTOML()
	return os.WriteFile(configFile, []byte(content), 0644)
}

func ConfigPath() (string, error) {
	return paths.ConfigPath()
}

func ConfigExists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// GroupingOptions maps [matching] onto grouper options.
func (c *Config) GroupingOptions() dedup.Options {
	aliases := make(map[string]string, len(c.Matching.Aliases))
	for k, v := range c.Matching.Aliases {
		aliases[k] = v
	}
	return dedup.Options{
		SimilarityThreshold: c.Matching.SimilarityThreshold,
		RomanizationBridge:  c.Matching.RomanizationBridge,
		RequireTokenOverlap: c.Matching.RequireTokenOverlap,
		Aliases:             aliases,
	}
}

// LoggingOptions maps [logging] onto the logger configuration.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}

// DatabasePath returns the configured database path or the default one.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return GetDatabasePath()
}

// ProcessedPath returns where ingested files are moved, defaulting to a
// sibling of the watch directory.
func (c *IngestConfig) ProcessedPath() string {
	if c.ProcessedDir != "" {
		return c.ProcessedDir
	}
	return filepath.Join(filepath.Dir(c.WatchDir), "processed")
}

// FailedPath returns where rejected files are moved.
func (c *IngestConfig) FailedPath() string {
	if c.FailedDir != "" {
		return c.FailedDir
	}
	return filepath.Join(filepath.Dir(c.WatchDir), "failed")
}

func (c *Config) ToTOML() string {
	return fmt.Sprintf(`# animerge configuration
# Generated by: animerge config init

# ============================================================================
# DATABASE
# SQLite store holding anime, watchlists, reviews, lists and merge batches
# ============================================================================
[database]
# Empty = ~/.config/animerge/anime.db
path = %q

# ============================================================================
# MATCHING
# Rules deciding which records denote the same title
# ============================================================================
[matching]
# Title similarity (0-1) above which records without conflicting ids merge
similarity_threshold = %.2f

# Link romanized Japanese titles to localized ones released the same year
romanization_bridge = %v

# Require a shared title word or an alias entry before bridging
require_token_overlap = %v

# Known equivalent titles, e.g. "kimi no na wa" = "your name"
[matching.aliases]
%s
# ============================================================================
# DEDUP RUNS
# ============================================================================
[dedup]
# Maximum groups merged per run (0 = no limit)
limit_groups = %d

# ============================================================================
# INGESTION
# JSON record batches dropped into watch_dir are ingested and moved
# ============================================================================
[ingest]
watch_dir = %q
# Empty = siblings of watch_dir named processed/ and failed/
processed_dir = %q
failed_dir = %q

# ============================================================================
# ADMIN API
# For animerge serve
# ============================================================================
[server]
addr = %q
cors_origins = %s
# Empty = no authentication; keep addr on localhost in that case
token = %q

# ============================================================================
# LOGGING
# ============================================================================
[logging]
level = %q
file = %q
max_size_mb = %d
max_backups = %d
`,
		c.Database.Path,
		c.Matching.SimilarityThreshold,
		c.Matching.RomanizationBridge,
		c.Matching.RequireTokenOverlap,
		formatAliases(c.Matching.Aliases),
		c.Dedup.LimitGroups,
		c.Ingest.WatchDir,
		c.Ingest.ProcessedDir,
		c.Ingest.FailedDir,
		c.Server.Addr,
		formatStringSlice(c.Server.CORSOrigins),
		c.Server.Token,
		c.Logging.Level,
		c.Logging.File,
		c.Logging.MaxSizeMB,
		c.Logging.MaxBackups,
	)
}

func formatStringSlice(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	quoted := make([]string, len(s))
	for i, v := range s {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func formatAliases(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%q = %q\n", k, m[k])
	}
	return b.String()
}

// GetDatabasePath returns the default path of the anime database file
func GetDatabasePath() string {
	dbPath, err := paths.DatabasePath()
	if err != nil {
		return "./anime.db"
	}
	return dbPath
}
