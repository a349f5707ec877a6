package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for dosetrack
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Security      SecurityConfig      `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// SchedulerConfig holds dose sweep and materialization settings
type SchedulerConfig struct {
	SweepInterval       int `mapstructure:"sweep_interval"`        // minutes between sweep runs
	MissedGracePeriod   int `mapstructure:"missed_grace_period"`   // minutes a pending dose may lag before marked missed
	HistoryLimit        int `mapstructure:"history_limit"`         // per-medication history rows returned to readers
	RefillAlertCooldown int `mapstructure:"refill_alert_cooldown"` // hours between refill alerts per medication
}

// NotificationsConfig holds reminder delivery settings
type NotificationsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	// RatePerMinute caps outbound reminder messages across all channels
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

// TelegramConfig holds Telegram delivery settings
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// DiscordConfig holds Discord delivery settings
type DiscordConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	APIPassword  string   `mapstructure:"api_password"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "dosetrack.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "triggers"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "dosetrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (DOSETRACK_SERVER_PORT, DOSETRACK_NOTIFICATIONS_TELEGRAM_BOT_TOKEN, etc.)
	v.SetEnvPrefix("DOSETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch reloads notification and scheduler settings when the config file
// changes on disk. Storage paths are fixed for the process lifetime.
func Watch(configPath string, onChange func(*Config)) error {
	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write == 0 && e.Op&fsnotify.Create == 0 {
			return
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8475)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("scheduler.sweep_interval", 5)
	v.SetDefault("scheduler.missed_grace_period", 120)
	v.SetDefault("scheduler.history_limit", 30)
	v.SetDefault("scheduler.refill_alert_cooldown", 24)

	v.SetDefault("notifications.rate_per_minute", 20)
	v.SetDefault("notifications.telegram.enabled", false)
	v.SetDefault("notifications.discord.enabled", false)

	v.SetDefault("security.allow_origins", []string{"http://localhost:5173", "http://localhost:3000"})
}

func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dosetrack"
	}
	return filepath.Join(home, ".dosetrack")
}

func loadEnvOverrides(cfg *Config) {
	cfg.Notifications.Telegram.BotToken = GetEnvWithFallback(
		"DOSETRACK_NOTIFICATIONS_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	if cfg.Notifications.Telegram.BotToken == "" {
		cfg.Notifications.Telegram.BotToken = os.Getenv("DOSETRACK_TELEGRAM_BOT_TOKEN")
	}

	if token := GetEnvWithFallback("DOSETRACK_NOTIFICATIONS_DISCORD_TOKEN", "DISCORD_BOT_TOKEN"); token != "" {
		cfg.Notifications.Discord.Token = token
	}

	if secret := GetEnvWithFallback("DOSETRACK_SECURITY_JWT_SECRET", "DOSETRACK_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}
	if pw := os.Getenv("DOSETRACK_SECURITY_API_PASSWORD"); pw != "" {
		cfg.Security.APIPassword = pw
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}

	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 5
	}
	if cfg.Scheduler.MissedGracePeriod < 0 {
		cfg.Scheduler.MissedGracePeriod = 0
	}
	if cfg.Scheduler.HistoryLimit <= 0 {
		cfg.Scheduler.HistoryLimit = 30
	}

	if cfg.Notifications.Telegram.Enabled && cfg.Notifications.Telegram.BotToken == "" {
		return fmt.Errorf("notifications.telegram.bot_token is required when telegram is enabled")
	}
	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.Token == "" {
		return fmt.Errorf("notifications.discord.token is required when discord is enabled")
	}

	// Generate JWT secret if not provided
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}

	return nil
}

func generateRandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[i%len(letters)]
	}
	return string(b)
}
