package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the sample value shipped in example configs. It is
// treated exactly like a missing key.
const PlaceholderAPIKey = "YOUR_RAPIDAPI_KEY_HERE"

// PrimaryConfig holds the settings for the mail.tm provider.
type PrimaryConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// FallbackConfig holds the settings for the RapidAPI provider.
type FallbackConfig struct {
	// BaseURL is the root URL of the RapidAPI endpoint.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Host is sent as the x-rapidapi-host header.
	Host string `mapstructure:"host" yaml:"host"`

	// APIKey is the RapidAPI key. Empty means "look in the keyring".
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// ProvidersConfig groups both provider configurations.
type ProvidersConfig struct {
	Primary  PrimaryConfig  `mapstructure:"primary" yaml:"primary"`
	Fallback FallbackConfig `mapstructure:"fallback" yaml:"fallback"`
}

// NetworkConfig controls every outbound provider call.
type NetworkConfig struct {
	// RequestTimeoutSec bounds each HTTP request.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`

	// BreakerFailures is the number of consecutive transport failures
	// after which a provider's circuit opens.
	BreakerFailures int `mapstructure:"breaker_failures" yaml:"breaker_failures"`
}

// InboxConfig controls the inbox synchronizer.
type InboxConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	MinRefreshMs    int `mapstructure:"min_refresh_ms" yaml:"min_refresh_ms"`
}

// RecoveryConfig controls the cooldowns of the auth-recovery and
// provisioning locks.
type RecoveryConfig struct {
	RefreshCooldownMs   int `mapstructure:"refresh_cooldown_ms" yaml:"refresh_cooldown_ms"`
	ProvisionCooldownMs int `mapstructure:"provision_cooldown_ms" yaml:"provision_cooldown_ms"`
}

// SessionConfig controls whether the active mailbox survives restarts.
type SessionConfig struct {
	Persist bool `mapstructure:"persist" yaml:"persist"`
}

// StorageConfig locates the local bookkeeping database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Inbox     InboxConfig     `mapstructure:"inbox" yaml:"inbox"`
	Recovery  RecoveryConfig  `mapstructure:"recovery" yaml:"recovery"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Network.RequestTimeoutSec) * time.Second
}

// PollInterval returns the inbox polling interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Inbox.PollIntervalSec) * time.Second
}

// MinRefresh returns the minimum visible duration of an inbox refresh.
func (c *AppConfig) MinRefresh() time.Duration {
	return time.Duration(c.Inbox.MinRefreshMs) * time.Millisecond
}

// RefreshCooldown returns how long the auth-refresh lock stays held after
// a recovery attempt.
func (c *AppConfig) RefreshCooldown() time.Duration {
	return time.Duration(c.Recovery.RefreshCooldownMs) * time.Millisecond
}

// ProvisionCooldown returns how long the provisioning lock stays held
// after a provisioning attempt.
func (c *AppConfig) ProvisionCooldown() time.Duration {
	return time.Duration(c.Recovery.ProvisionCooldownMs) * time.Millisecond
}

// FallbackKeyConfigured reports whether key is a usable RapidAPI key.
func FallbackKeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderAPIKey
}

// ConfigDir returns ~/.config/tempinbox, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tempinbox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tempinbox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Providers: ProvidersConfig{
			Primary: PrimaryConfig{BaseURL: "https://api.mail.tm"},
			Fallback: FallbackConfig{
				BaseURL: "https://free-tempmail-api.p.rapidapi.com",
				Host:    "free-tempmail-api.p.rapidapi.com",
			},
		},
		Network: NetworkConfig{
			RequestTimeoutSec: 8,
			BreakerFailures:   5,
		},
		Inbox: InboxConfig{
			PollIntervalSec: 10,
			MinRefreshMs:    800,
		},
		Recovery: RecoveryConfig{
			RefreshCooldownMs:   2000,
			ProvisionCooldownMs: 800,
		},
		Session: SessionConfig{Persist: true},
		Storage: StorageConfig{
			DBPath: filepath.Join(ConfigDir(), "tempinbox.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "tempinbox.log"),
		},
	}
}

// setDefaults mirrors defaultAppConfig into v so that partially written
// config files and environment overrides resolve to the same values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("providers.primary.base_url", d.Providers.Primary.BaseURL)
	v.SetDefault("providers.fallback.base_url", d.Providers.Fallback.BaseURL)
	v.SetDefault("providers.fallback.host", d.Providers.Fallback.Host)
	v.SetDefault("providers.fallback.api_key", "")
	v.SetDefault("network.request_timeout_sec", d.Network.RequestTimeoutSec)
	v.SetDefault("network.breaker_failures", d.Network.BreakerFailures)
	v.SetDefault("inbox.poll_interval_sec", d.Inbox.PollIntervalSec)
	v.SetDefault("inbox.min_refresh_ms", d.Inbox.MinRefreshMs)
	v.SetDefault("recovery.refresh_cooldown_ms", d.Recovery.RefreshCooldownMs)
	v.SetDefault("recovery.provision_cooldown_ms", d.Recovery.ProvisionCooldownMs)
	v.SetDefault("session.persist", d.Session.Persist)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// NewViper returns a viper instance with defaults and environment
// bindings applied. Callers may bind flags to it before LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TEMPINBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare RAPID_API_KEY name is what the hosted deployment used.
	_ = v.BindEnv("providers.fallback.api_key",
		"TEMPINBOX_PROVIDERS_FALLBACK_API_KEY", "RAPID_API_KEY")

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the defaults (plus any
// environment overrides).
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWith(NewViper(), path)
}

// LoadConfigWith is LoadConfig with a caller-prepared viper instance.
func LoadConfigWith(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	normalize(cfg)
	return cfg, nil
}

// normalize replaces non-positive durations with the defaults.
func normalize(cfg *AppConfig) {
	d := defaultAppConfig()
	if cfg.Network.RequestTimeoutSec <= 0 {
		cfg.Network.RequestTimeoutSec = d.Network.RequestTimeoutSec
	}
	if cfg.Network.BreakerFailures <= 0 {
		cfg.Network.BreakerFailures = d.Network.BreakerFailures
	}
	if cfg.Inbox.PollIntervalSec <= 0 {
		cfg.Inbox.PollIntervalSec = d.Inbox.PollIntervalSec
	}
	if cfg.Inbox.MinRefreshMs < 0 {
		cfg.Inbox.MinRefreshMs = d.Inbox.MinRefreshMs
	}
	if cfg.Recovery.RefreshCooldownMs < 0 {
		cfg.Recovery.RefreshCooldownMs = d.Recovery.RefreshCooldownMs
	}
	if cfg.Recovery.ProvisionCooldownMs < 0 {
		cfg.Recovery.ProvisionCooldownMs = d.Recovery.ProvisionCooldownMs
	}
	cfg.Providers.Primary.BaseURL = strings.TrimRight(cfg.Providers.Primary.BaseURL, "/")
	cfg.Providers.Fallback.BaseURL = strings.TrimRight(cfg.Providers.Fallback.BaseURL, "/")
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The fallback API key is never
// written; it belongs in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	providers := cfg.Providers
	providers.Fallback.APIKey = ""
	v.Set("providers", providers)
	v.Set("network", cfg.Network)
	v.Set("inbox", cfg.Inbox)
	v.Set("recovery", cfg.Recovery)
	v.Set("session", cfg.Session)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
