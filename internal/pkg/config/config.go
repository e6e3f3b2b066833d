package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	OddsPortal OddsPortalConfig `yaml:"oddsportal"`
	Pinnacle   PinnacleConfig   `yaml:"pinnacle"`
	ESPN       ESPNConfig       `yaml:"espn"`
	Server     ServerConfig     `yaml:"server"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres" (default) or "memory"
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"` // empty disables the shared alert lock
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // optional JSON log file
}

type SchedulerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	PreStartWindow    time.Duration `yaml:"pre_start_window"`
	FinalQuietWindow  time.Duration `yaml:"final_quiet_window"`
	MinQuietSnapshots int           `yaml:"min_quiet_snapshots"`
	PollTimeout       time.Duration `yaml:"poll_timeout"`
	HistorySize       int           `yaml:"history_size"` // snapshots fed to the detector per poll
	MaxGap            time.Duration `yaml:"max_gap"`
}

type AlertsConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Enabled reports whether both credentials are present.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

type OddsPortalConfig struct {
	ListURL     string        `yaml:"list_url"`
	Headful     bool          `yaml:"headful"` // run Chrome with a window, for debugging
	UserAgent   string        `yaml:"user_agent"`
	PageTimeout time.Duration `yaml:"page_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"` // wait after navigation for client-side rendering
}

type PinnacleConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	DeviceUUID string        `yaml:"device_uuid"`
	LeagueID   int64         `yaml:"league_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ESPNConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Option adjusts a config after environment overrides and before defaults and validation.
type Option func(*Config)

// WithStorageDriver forces the storage driver, ignoring the file and environment.
func WithStorageDriver(driver string) Option {
	return func(c *Config) {
		if driver != "" {
			c.Storage.Driver = driver
		}
	}
}

// Load reads a YAML config, applies environment overrides, opts and defaults, and
// validates the result.
func Load(configPath string, opts ...Option) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&config)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a config with every default applied and environment overrides read.
func Default(opts ...Option) (*Config, error) {
	var config Config
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&config)
	}
	config.ApplyDefaults()
	return &config, config.Validate()
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("PINNACLE_API_KEY"); v != "" {
		c.Pinnacle.APIKey = v
	}
	return nil
}

// ApplyDefaults fills zero values with the default policy.
func (c *Config) ApplyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	s := &c.Scheduler
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.PreStartWindow == 0 {
		s.PreStartWindow = 15 * time.Minute
	}
	if s.FinalQuietWindow == 0 {
		s.FinalQuietWindow = 20 * time.Minute
	}
	if s.MinQuietSnapshots == 0 {
		s.MinQuietSnapshots = 2
	}
	if s.PollTimeout == 0 {
		s.PollTimeout = 25 * time.Second
	}
	if s.HistorySize == 0 {
		s.HistorySize = 50
	}
	if s.MaxGap == 0 {
		s.MaxGap = 120 * time.Second
	}

	if c.Alerts.Cooldown == 0 {
		c.Alerts.Cooldown = 10 * time.Minute
	}

	if c.OddsPortal.ListURL == "" {
		c.OddsPortal.ListURL = "https://www.oddsportal.com/basketball/usa/nba/"
	}
	if c.OddsPortal.PageTimeout == 0 {
		c.OddsPortal.PageTimeout = 20 * time.Second
	}
	if c.OddsPortal.SettleDelay == 0 {
		c.OddsPortal.SettleDelay = 3 * time.Second
	}

	if c.Pinnacle.BaseURL == "" {
		c.Pinnacle.BaseURL = "https://guest.api.arcadia.pinnacle.com"
	}
	if c.Pinnacle.LeagueID == 0 {
		c.Pinnacle.LeagueID = 487 // NBA
	}
	if c.Pinnacle.Timeout == 0 {
		c.Pinnacle.Timeout = 15 * time.Second
	}
	if c.ESPN.BaseURL == "" {
		c.ESPN.BaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"
	}
	if c.ESPN.Timeout == 0 {
		c.ESPN.Timeout = 10 * time.Second
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate rejects configs the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres storage driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	s := c.Scheduler
	if s.Interval <= 0 || s.PreStartWindow <= 0 || s.FinalQuietWindow <= 0 || s.PollTimeout <= 0 {
		errs = append(errs, errors.New("scheduler durations must be positive"))
	}
	if s.MinQuietSnapshots < 2 {
		errs = append(errs, errors.New("scheduler.min_quiet_snapshots must be at least 2"))
	}
	if s.HistorySize < 3 {
		errs = append(errs, errors.New("scheduler.history_size must be at least 3"))
	}
	if c.Alerts.Cooldown < 0 {
		errs = append(errs, errors.New("alerts.cooldown must not be negative"))
	}
	return errors.Join(errs...)
}
