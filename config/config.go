package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
var ErrInvalidConfig = errors.New("invalid config")

// DateLayout is the ISO calendar date layout used for start/end bounds.
const DateLayout = "2006-01-02"

type Config struct {
	DataDir           string `mapstructure:"data_dir"`
	OutputDir         string `mapstructure:"output_dir"`
	ExchangeAddresses string `mapstructure:"exchange_addresses"`
	FilePattern       string `mapstructure:"file_pattern"`
	StartDate         string `mapstructure:"start_date"` // inclusive, empty = unbounded
	EndDate           string `mapstructure:"end_date"`   // inclusive, empty = unbounded
	Network           string `mapstructure:"network"`    // mainnet, testnet, regtest, simnet
	AmountUnit        string `mapstructure:"amount_unit"`
	TimestampUnit     string `mapstructure:"timestamp_unit"`
	Workers           int    `mapstructure:"workers"`

	Charts     ChartConfig      `mapstructure:"charts"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	S3         S3Config         `mapstructure:"s3"`
}

// ChartConfig controls which exchanges are plotted and the image size.
type ChartConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TopNVolume      int  `mapstructure:"top_n_volume"`
	TopNFlow        int  `mapstructure:"top_n_flow"`
	TopNTimeSeries  int  `mapstructure:"top_n_timeseries"`
	TopNMarketShare int  `mapstructure:"top_n_market_share"`
	WidthPx         int  `mapstructure:"width_px"`
	HeightPx        int  `mapstructure:"height_px"`
}

type ReportConfig struct {
	XLSX bool `mapstructure:"xlsx"` // also write exchange_flows.xlsx
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type ClickHouseConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Database string        `mapstructure:"database"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // 0 keeps keys forever
}

type S3Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("exchange_addresses", "./exchange_addresses.json")
	v.SetDefault("file_pattern", "*.parquet")
	v.SetDefault("start_date", "")
	v.SetDefault("end_date", "")
	v.SetDefault("network", "mainnet")
	v.SetDefault("amount_unit", "btc")
	v.SetDefault("timestamp_unit", "s")
	v.SetDefault("workers", 1)

	v.SetDefault("charts.enabled", true)
	v.SetDefault("charts.top_n_volume", 10)
	v.SetDefault("charts.top_n_flow", 10)
	v.SetDefault("charts.top_n_timeseries", 5)
	v.SetDefault("charts.top_n_market_share", 5)
	v.SetDefault("charts.width_px", 1200)
	v.SetDefault("charts.height_px", 600)

	v.SetDefault("report.xlsx", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "exchangeflow")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.create_db", true)

	v.SetDefault("clickhouse.enabled", false)
	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.timeout", 10*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 0)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.prefix", "exchangeflow")
}

// Load loads application configuration using Viper.
// It reads from path (or config.yaml in the working directory or ./config
// when path is empty) and overrides with FLOWSTAT_* environment variables.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Support environment variables with dot notation (e.g., FLOWSTAT_CHARTS_TOP_N_VOLUME)
	v.SetEnvPrefix("FLOWSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields the analyzer relies on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidConfig)
	}
	if c.ExchangeAddresses == "" {
		return fmt.Errorf("%w: exchange_addresses is required", ErrInvalidConfig)
	}

	start, end, err := c.DateBounds()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("%w: start_date %s is after end_date %s", ErrInvalidConfig, c.StartDate, c.EndDate)
	}

	if _, err := c.NetParams(); err != nil {
		return err
	}

	switch c.AmountUnit {
	case "btc", "satoshi":
	default:
		return fmt.Errorf("%w: unknown amount_unit %q", ErrInvalidConfig, c.AmountUnit)
	}

	switch c.TimestampUnit {
	case "s", "ms", "us", "ns":
	default:
		return fmt.Errorf("%w: unknown timestamp_unit %q", ErrInvalidConfig, c.TimestampUnit)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}

	topN := []struct {
		key string
		n   int
	}{
		{"top_n_volume", c.Charts.TopNVolume},
		{"top_n_flow", c.Charts.TopNFlow},
		{"top_n_timeseries", c.Charts.TopNTimeSeries},
		{"top_n_market_share", c.Charts.TopNMarketShare},
	}
	for _, t := range topN {
		if t.n < 1 {
			return fmt.Errorf("%w: charts.%s must be at least 1", ErrInvalidConfig, t.key)
		}
	}
	if c.Charts.WidthPx < 1 || c.Charts.HeightPx < 1 {
		return fmt.Errorf("%w: chart size must be positive", ErrInvalidConfig)
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("%w: s3.bucket is required when s3 is enabled", ErrInvalidConfig)
	}

	return nil
}

// DateBounds parses StartDate and EndDate. An empty string yields the zero
// time, which callers treat as unbounded.
func (c *Config) DateBounds() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if c.StartDate != "" {
		start, err = time.Parse(DateLayout, c.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
		}
	}
	if c.EndDate != "" {
		end, err = time.Parse(DateLayout, c.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
		}
	}
	return start, end, nil
}
