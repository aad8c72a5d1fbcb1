package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Proxy    ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
	Player   PlayerConfig   `mapstructure:"player" yaml:"player"`
	Tracker  TrackerConfig  `mapstructure:"tracker" yaml:"tracker"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Advanced AdvancedConfig `mapstructure:"advanced" yaml:"advanced"`
}

// APIConfig points at the single backend that serves catalog, sources,
// progress updates and the streaming proxy.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ProxyConfig configures the embedded streaming proxy
type ProxyConfig struct {
	// Listen is the address `yoru proxy` binds to
	Listen string `mapstructure:"listen" yaml:"listen"`
	// PublicURL overrides the base used when rewriting source URLs.
	// Empty means api.base_url.
	PublicURL      string `mapstructure:"public_url" yaml:"public_url"`
	DefaultReferer string `mapstructure:"default_referer" yaml:"default_referer"`
	InitialChunk   int64  `mapstructure:"initial_chunk" yaml:"initial_chunk"` // bytes
	MaxChunk       int64  `mapstructure:"max_chunk" yaml:"max_chunk"`         // bytes
}

// PlayerConfig configures the mpv engine and keyboard steps
type PlayerConfig struct {
	MPVPath        string        `mapstructure:"mpv_path" yaml:"mpv_path"`
	LoadUserConfig bool          `mapstructure:"load_user_config" yaml:"load_user_config"`
	Volume         int           `mapstructure:"volume" yaml:"volume"` // 0-100
	Fullscreen     bool          `mapstructure:"fullscreen" yaml:"fullscreen"`
	SeekStep       time.Duration `mapstructure:"seek_step" yaml:"seek_step"`
	VolumeStep     float64       `mapstructure:"volume_step" yaml:"volume_step"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// TrackerConfig groups tracking services
type TrackerConfig struct {
	AniList AniListConfig `mapstructure:"anilist" yaml:"anilist"`
}

// AniListConfig configures progress sync
type AniListConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	AutoSync      bool    `mapstructure:"auto_sync" yaml:"auto_sync"`
	SyncThreshold float64 `mapstructure:"sync_threshold" yaml:"sync_threshold"` // 0.0 - 1.0
	ClientID      string  `mapstructure:"client_id" yaml:"client_id"`
	RedirectURI   string  `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	// TokenStore is "database" or "keyring"
	TokenStore string `mapstructure:"token_store" yaml:"token_store"`
}

// DatabaseConfig configures the local sqlite store
type DatabaseConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode" yaml:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum" yaml:"auto_vacuum"`
}

// LoggingConfig configures slog output and rotation
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // text, json
	File       string `mapstructure:"file" yaml:"file"`
	Color      bool   `mapstructure:"color" yaml:"color"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// AdvancedConfig holds rarely changed knobs
type AdvancedConfig struct {
	Debug     bool            `mapstructure:"debug" yaml:"debug"`
	Clipboard ClipboardConfig `mapstructure:"clipboard" yaml:"clipboard"`
}

// ClipboardConfig allows overriding the clipboard command
type ClipboardConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
}

// SetDefaults registers every configuration key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:4000")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("proxy.listen", "127.0.0.1:4001")
	v.SetDefault("proxy.public_url", "")
	v.SetDefault("proxy.default_referer", "https://example.com")
	v.SetDefault("proxy.initial_chunk", 2*1024*1024)
	v.SetDefault("proxy.max_chunk", 2*1024*1024)

	v.SetDefault("player.mpv_path", "")
	v.SetDefault("player.load_user_config", false)
	v.SetDefault("player.volume", 100)
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.seek_step", 5*time.Second)
	v.SetDefault("player.volume_step", 0.1)
	v.SetDefault("player.poll_interval", 500*time.Millisecond)

	v.SetDefault("tracker.anilist.enabled", true)
	v.SetDefault("tracker.anilist.auto_sync", true)
	v.SetDefault("tracker.anilist.sync_threshold", 0.8)
	v.SetDefault("tracker.anilist.client_id", "31463")
	v.SetDefault("tracker.anilist.redirect_uri", "https://anilist.co/api/v2/oauth/pin")
	v.SetDefault("tracker.anilist.token_store", "database")

	v.SetDefault("database.path", filepath.Join(getDataDir(), "yoru", "yoru.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), "yoru", "yoru.log"))
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard.command", "")
}

// Load reads the configuration file (if any), environment and defaults.
// An empty path means the default location.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("YORU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// Default returns the configuration built from defaults only
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.Tracker.AniList.SyncThreshold <= 0 || c.Tracker.AniList.SyncThreshold > 1 {
		return fmt.Errorf("tracker.anilist.sync_threshold must be in (0, 1], got %v", c.Tracker.AniList.SyncThreshold)
	}
	switch c.Tracker.AniList.TokenStore {
	case "database", "keyring":
	default:
		return fmt.Errorf("tracker.anilist.token_store must be database or keyring, got %q", c.Tracker.AniList.TokenStore)
	}
	return nil
}

// ProxyBase returns the base URL source URLs are rewritten against
func (c *Config) ProxyBase() string {
	if c.Proxy.PublicURL != "" {
		return c.Proxy.PublicURL
	}
	return c.API.BaseURL
}

// ConfigDir returns the directory holding config.yaml
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "yoru")
	}
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, "yoru")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "yoru")
}

// ConfigFile returns the default config file path
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	for _, dir := range []string{
		ConfigDir(),
		filepath.Join(getDataDir(), "yoru"),
		filepath.Join(getStateDir(), "yoru"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state")
}

// Marshal renders the configuration as YAML
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveDefaultConfig writes the default configuration to path. An existing
// file is never overwritten.
func SaveDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	header := []byte("# yoru configuration\n# Every key can be overridden with YORU_<SECTION>_<KEY>.\n\n")
	return os.WriteFile(path, append(header, data...), 0644)
}
