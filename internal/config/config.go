// Package config provides configuration management for timeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Provider kinds.
const (
	ProviderICS    = "ics"
	ProviderWeekly = "weekly"
)

// Secret store backends.
const (
	SecretsKeyring  = "keyring"
	SecretsDatabase = "database"
)

const defaultDataDir = "~/.timeline"

// Config holds all configuration for the timeline application.
type Config struct {
	Timezone      string             `mapstructure:"timezone"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Provider      ProviderConfig     `mapstructure:"provider"`
	Secrets       SecretsConfig      `mapstructure:"secrets"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	MCP           MCPConfig          `mapstructure:"mcp"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Log           LogConfig          `mapstructure:"log"`
	Theme         ThemeConfig        `mapstructure:"theme"`
}

// ScheduleConfig holds day-advance and resync settings.
type ScheduleConfig struct {
	MaxAdvanceDays int    `mapstructure:"max_advance_days"`
	ResyncCron     string `mapstructure:"resync_cron"`
}

// ProviderConfig selects and configures the timetable provider.
type ProviderConfig struct {
	Kind       string   `mapstructure:"kind"`
	ICSURL     string   `mapstructure:"ics_url"`
	BellTimes  []string `mapstructure:"bell_times"`
	Timeout    Duration `mapstructure:"timeout"`
	WeeklyFile string   `mapstructure:"weekly_file"`
}

// SecretsConfig selects where owner passwords are kept.
type SecretsConfig struct {
	Backend string `mapstructure:"backend"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Sound   bool `mapstructure:"sound"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ThemeConfig holds terminal colors for the timeline views.
type ThemeConfig struct {
	ColorCurrent  string `mapstructure:"color_current"`
	ColorLesson   string `mapstructure:"color_lesson"`
	ColorPast     string `mapstructure:"color_past"`
	ColorTitle    string `mapstructure:"color_title"`
	ColorError    string `mapstructure:"color_error"`
	ColorHelp     string `mapstructure:"color_help"`
	GradientStart string `mapstructure:"gradient_start"`
	GradientEnd   string `mapstructure:"gradient_end"`
}

// DefaultThemeConfig returns the default theme configuration.
func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{
		ColorCurrent:  "#7C6FE0",
		ColorLesson:   "#A0AEC0",
		ColorPast:     "#4B5563",
		ColorTitle:    "#6B7280",
		ColorError:    "#E06C75",
		ColorHelp:     "#95A5A6",
		GradientStart: "#7C6FE0",
		GradientEnd:   "#A78BFA",
	}
}

// WithDefaults returns t with every empty color replaced by its default.
func (t ThemeConfig) WithDefaults() ThemeConfig {
	d := DefaultThemeConfig()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&t.ColorCurrent, d.ColorCurrent)
	fill(&t.ColorLesson, d.ColorLesson)
	fill(&t.ColorPast, d.ColorPast)
	fill(&t.ColorTitle, d.ColorTitle)
	fill(&t.ColorError, d.ColorError)
	fill(&t.ColorHelp, d.ColorHelp)
	fill(&t.GradientStart, d.GradientStart)
	fill(&t.GradientEnd, d.GradientEnd)
	return t
}

// Duration is a wrapper around time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Local",
		Schedule: ScheduleConfig{
			MaxAdvanceDays: 14,
		},
		Provider: ProviderConfig{
			Kind:      ProviderICS,
			BellTimes: []string{},
			Timeout:   Duration(15 * time.Second),
		},
		Secrets: SecretsConfig{
			Backend: SecretsKeyring,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Sound:   false,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Theme: DefaultThemeConfig(),
	}
}

// Load loads the configuration from the default config file.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath, creating it with
// defaults when it does not exist yet.
func LoadFrom(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := newViper(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dataDir, err := expandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes cfg to configPath as TOML.
func SaveTo(configPath string, cfg *Config) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(configPath)

	v.Set("timezone", cfg.Timezone)
	v.Set("schedule.max_advance_days", cfg.Schedule.MaxAdvanceDays)
	v.Set("schedule.resync_cron", cfg.Schedule.ResyncCron)
	v.Set("provider.kind", cfg.Provider.Kind)
	v.Set("provider.ics_url", cfg.Provider.ICSURL)
	v.Set("provider.bell_times", cfg.Provider.BellTimes)
	v.Set("provider.timeout", cfg.Provider.Timeout.String())
	v.Set("provider.weekly_file", cfg.Provider.WeeklyFile)
	v.Set("secrets.backend", cfg.Secrets.Backend)
	v.Set("notifications.enabled", cfg.Notifications.Enabled)
	v.Set("notifications.sound", cfg.Notifications.Sound)
	v.Set("mcp.enabled", cfg.MCP.Enabled)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("theme.color_current", cfg.Theme.ColorCurrent)
	v.Set("theme.color_lesson", cfg.Theme.ColorLesson)
	v.Set("theme.color_past", cfg.Theme.ColorPast)
	v.Set("theme.color_title", cfg.Theme.ColorTitle)
	v.Set("theme.color_error", cfg.Theme.ColorError)
	v.Set("theme.color_help", cfg.Theme.ColorHelp)
	v.Set("theme.gradient_start", cfg.Theme.GradientStart)
	v.Set("theme.gradient_end", cfg.Theme.GradientEnd)

	return v.WriteConfigAs(configPath)
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Schedule.MaxAdvanceDays < 1 {
		return fmt.Errorf("schedule.max_advance_days must be at least 1, got %d", c.Schedule.MaxAdvanceDays)
	}
	switch c.Provider.Kind {
	case ProviderICS, ProviderWeekly:
	default:
		return fmt.Errorf("invalid provider.kind %q: must be one of ics, weekly", c.Provider.Kind)
	}
	switch c.Secrets.Backend {
	case SecretsKeyring, SecretsDatabase:
	default:
		return fmt.Errorf("invalid secrets.backend %q: must be one of keyring, database", c.Secrets.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetConfigPath returns the path to the config file. TIMELINE_CONFIG
// overrides the default location.
func GetConfigPath() (string, error) {
	if p := os.Getenv("TIMELINE_CONFIG"); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".timeline", "config.toml"), nil
}

// GetDBPath returns the path to the database file.
func GetDBPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "timeline.db")
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("TIMELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func expandHome(dir string) (string, error) {
	if dir != "" && dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if dir == "" || dir == "~" {
		return filepath.Join(homeDir, ".timeline"), nil
	}
	return filepath.Join(homeDir, strings.TrimPrefix(dir, "~/")), nil
}

// setDefaults sets default values for viper.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("timezone", defaults.Timezone)
	v.SetDefault("schedule.max_advance_days", defaults.Schedule.MaxAdvanceDays)
	v.SetDefault("schedule.resync_cron", "")
	v.SetDefault("provider.kind", defaults.Provider.Kind)
	v.SetDefault("provider.ics_url", "")
	v.SetDefault("provider.bell_times", []string{})
	v.SetDefault("provider.timeout", defaults.Provider.Timeout.String())
	v.SetDefault("provider.weekly_file", "")
	v.SetDefault("secrets.backend", defaults.Secrets.Backend)
	v.SetDefault("notifications.enabled", defaults.Notifications.Enabled)
	v.SetDefault("notifications.sound", defaults.Notifications.Sound)
	v.SetDefault("mcp.enabled", defaults.MCP.Enabled)
	v.SetDefault("storage.data_dir", defaultDataDir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	// Theme defaults
	v.SetDefault("theme.color_current", defaults.Theme.ColorCurrent)
	v.SetDefault("theme.color_lesson", defaults.Theme.ColorLesson)
	v.SetDefault("theme.color_past", defaults.Theme.ColorPast)
	v.SetDefault("theme.color_title", defaults.Theme.ColorTitle)
	v.SetDefault("theme.color_error", defaults.Theme.ColorError)
	v.SetDefault("theme.color_help", defaults.Theme.ColorHelp)
	v.SetDefault("theme.gradient_start", defaults.Theme.GradientStart)
	v.SetDefault("theme.gradient_end", defaults.Theme.GradientEnd)
}
