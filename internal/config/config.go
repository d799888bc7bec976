package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"price-anomaly-repair/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Source     SourceConfig     `mapstructure:"source"`
	Validation ValidationConfig `mapstructure:"validation"`
	Repair     RepairConfig     `mapstructure:"repair"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs validation run cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig selects where raw candidate records come from.
type SourceConfig struct {
	Mode           string        `mapstructure:"mode"` // file | http
	Dir            string        `mapstructure:"dir"`
	Glob           string        `mapstructure:"glob"`
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RangeConfig bounds one item category's plausible price.
type RangeConfig struct {
	Floor   float64 `mapstructure:"floor"`
	Ceiling float64 `mapstructure:"ceiling"`
}

// PairConfig names two price fields that conventionally appear together.
type PairConfig struct {
	First  string `mapstructure:"first"`
	Second string `mapstructure:"second"`
}

// ValidationConfig parameterises the anomaly detector.
type ValidationConfig struct {
	Ranges map[string]RangeConfig `mapstructure:"ranges"`
	Pairs  []PairConfig           `mapstructure:"pairs"`
	// HighMultiplier escalates an above-ceiling price to high severity once it
	// exceeds multiplier*ceiling.
	HighMultiplier float64 `mapstructure:"high_multiplier"`
}

// RepairConfig parameterises the external repair lookup step.
type RepairConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	AuthHeader     string        `mapstructure:"auth_header"`
	UserAgent      string        `mapstructure:"user_agent"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
}

// EthereumConfig covers the on-chain lookup used for exchange-rate categories.
type EthereumConfig struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	Aggregators    map[string]string `mapstructure:"aggregators"` // item -> aggregator address
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// SinkConfig sets where the dashboard JSON files are written.
type SinkConfig struct {
	Dir         string `mapstructure:"dir"`
	PricesFile  string `mapstructure:"prices_file"`
	ReportFile  string `mapstructure:"report_file"`
	PrettyPrint bool   `mapstructure:"pretty"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	NotifyQuality    string         `mapstructure:"notify_quality"`
	RemovedThreshold int            `mapstructure:"removed_threshold"`
	Channels         []string       `mapstructure:"channels"`
	Telegram         TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "priceqc")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70716367))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("source.mode", "file")
	v.SetDefault("source.dir", "feeds")
	v.SetDefault("source.glob", "*.json")
	v.SetDefault("source.request_timeout", "10s")
	v.SetDefault("source.user_agent", "priceqc/1.0")

	v.SetDefault("validation.high_multiplier", 5.0)
	v.SetDefault("validation.pairs", []map[string]string{
		{"first": "input_price", "second": "output_price"},
	})

	v.SetDefault("repair.enabled", true)
	v.SetDefault("repair.lookup_timeout", "10s")
	v.SetDefault("repair.concurrency", 4)
	v.SetDefault("repair.requests_per_sec", 3.0)
	v.SetDefault("repair.burst", 1)
	v.SetDefault("repair.user_agent", "priceqc/1.0")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("sink.dir", "data")
	v.SetDefault("sink.prices_file", "prices.json")
	v.SetDefault("sink.report_file", "report.json")
	v.SetDefault("sink.pretty", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.notify_quality", "poor")
	v.SetDefault("alerting.removed_threshold", 0)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Validation.HighMultiplier < 1 {
		return fmt.Errorf("validation.high_multiplier must be at least 1")
	}
	for category, rng := range c.Validation.Ranges {
		if rng.Ceiling < rng.Floor {
			return fmt.Errorf("validation.ranges.%s: ceiling below floor", category)
		}
	}
	for _, pair := range c.Validation.Pairs {
		if pair.First == "" || pair.Second == "" {
			return fmt.Errorf("validation.pairs entries need both first and second")
		}
	}
	switch c.Source.Mode {
	case "file", "http":
	default:
		return fmt.Errorf("source.mode must be file or http, got %q", c.Source.Mode)
	}
	if c.Source.Mode == "http" && c.Source.URL == "" {
		return fmt.Errorf("source.url 必须配置 (source.mode=http)")
	}
	if c.Repair.Concurrency < 1 {
		return fmt.Errorf("repair.concurrency must be at least 1")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
