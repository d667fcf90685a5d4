package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Tickers  []string       `mapstructure:"tickers"`
	GEX      GEXConfig      `mapstructure:"gex"`
	Squeeze  SqueezeConfig  `mapstructure:"squeeze"`
	Decision DecisionConfig `mapstructure:"decision"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Market   MarketConfig   `mapstructure:"market"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type GEXConfig struct {
	DetectionFloor  float64 `mapstructure:"detection_floor"`
	ConfidenceScale float64 `mapstructure:"confidence_scale"`
	FlipFarPct      float64 `mapstructure:"flip_far_pct"`
	FlipNearPct     float64 `mapstructure:"flip_near_pct"`
	IncludeExpiries int     `mapstructure:"include_expiries"`
}

type SqueezeConfig struct {
	PollIntervalSec  int     `mapstructure:"poll_interval_sec"`
	HistoryCapacity  int     `mapstructure:"history_capacity"`
	AlertCooldownMin int     `mapstructure:"alert_cooldown_min"`
	ConfirmTicks     int     `mapstructure:"confirm_ticks"`
	Workers          int     `mapstructure:"workers"`
	FastGEXChangePct float64 `mapstructure:"fast_gex_change_pct"`
	NearFlipPct      float64 `mapstructure:"near_flip_pct"`
	WallBreakPct     float64 `mapstructure:"wall_break_pct"`
	RatioShift       float64 `mapstructure:"ratio_shift"`
}

type DecisionConfig struct {
	MaxSpreadPct         float64 `mapstructure:"max_spread_pct"`
	MinConviction        int     `mapstructure:"min_conviction"`
	MaxTradesPerHour     int     `mapstructure:"max_trades_per_hour"`
	ConsecutiveLossLimit int     `mapstructure:"consecutive_loss_limit"`
	LossCooldownMin      int     `mapstructure:"loss_cooldown_min"`
	DeltaMin             float64 `mapstructure:"delta_min"`
	DeltaMax             float64 `mapstructure:"delta_max"`
	MaxStrikeDistancePct float64 `mapstructure:"max_strike_distance_pct"`
	PremiumStopPct       float64 `mapstructure:"premium_stop_pct"`
	TimeStopMinutes      int     `mapstructure:"time_stop_minutes"`
}

type NotifyConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Server   string   `mapstructure:"server"`
	Topic    string   `mapstructure:"topic"`
	Priority string   `mapstructure:"priority"`
	Tags     []string `mapstructure:"tags"`
	Token    string   `mapstructure:"token"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	WSEnabled bool   `mapstructure:"ws_enabled"`
}

type MarketConfig struct {
	Timezone    string `mapstructure:"timezone"`
	OpenSkipMin int    `mapstructure:"open_skip_min"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api.base_url", "https://api.gex.bot")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.retry_delay_sec", 5)
	v.SetDefault("api.rate_per_second", 2)
	v.SetDefault("tickers", []string{"SPY", "QQQ"})
	v.SetDefault("gex.detection_floor", 1_000_000.0)
	v.SetDefault("gex.confidence_scale", 100_000_000.0)
	v.SetDefault("gex.flip_far_pct", 2.0)
	v.SetDefault("gex.flip_near_pct", 0.5)
	v.SetDefault("gex.include_expiries", 3)
	v.SetDefault("squeeze.poll_interval_sec", 180)
	v.SetDefault("squeeze.history_capacity", 100)
	v.SetDefault("squeeze.alert_cooldown_min", 30)
	v.SetDefault("squeeze.confirm_ticks", 2)
	v.SetDefault("squeeze.workers", 4)
	v.SetDefault("squeeze.fast_gex_change_pct", 10.0)
	v.SetDefault("squeeze.near_flip_pct", 0.5)
	v.SetDefault("squeeze.wall_break_pct", 0.3)
	v.SetDefault("squeeze.ratio_shift", 0.15)
	v.SetDefault("decision.max_spread_pct", 8.0)
	v.SetDefault("decision.min_conviction", 5)
	v.SetDefault("decision.max_trades_per_hour", 3)
	v.SetDefault("decision.consecutive_loss_limit", 2)
	v.SetDefault("decision.loss_cooldown_min", 60)
	v.SetDefault("decision.delta_min", 0.35)
	v.SetDefault("decision.delta_max", 0.55)
	v.SetDefault("decision.max_strike_distance_pct", 1.0)
	v.SetDefault("decision.premium_stop_pct", 30.0)
	v.SetDefault("decision.time_stop_minutes", 45)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "gexbrain")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("market.timezone", "America/New_York")
	v.SetDefault("market.open_skip_min", 15)
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXBRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("api.api_key", "GEXBRAIN_API_KEY")
	_ = v.BindEnv("notify.token", "GEXBRAIN_NTFY_TOKEN")
	_ = v.BindEnv("redis.password", "GEXBRAIN_REDIS_PASSWORD")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api_key is required (set GEXBRAIN_API_KEY env var)")
	}
	if err := ValidateTickers(c.Tickers); err != nil {
		return err
	}
	if c.Squeeze.PollIntervalSec < 1 {
		return fmt.Errorf("squeeze poll_interval_sec must be >= 1")
	}
	if c.Squeeze.Workers < 1 {
		return fmt.Errorf("squeeze workers must be >= 1")
	}
	if c.Notify.Enabled && c.Notify.Topic == "" {
		return fmt.Errorf("notify topic is required when notify is enabled")
	}
	return nil
}

// PollInterval returns the squeeze poll interval as a duration.
func (c *SqueezeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// AlertCooldown returns the alert cooldown as a duration.
func (c *SqueezeConfig) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownMin) * time.Minute
}

// OpenSkip returns the post-open trading skip as a duration.
func (c *MarketConfig) OpenSkip() time.Duration {
	return time.Duration(c.OpenSkipMin) * time.Minute
}
