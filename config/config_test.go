package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exchangeflow/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/batches\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/batches" {
		t.Errorf("unexpected data_dir: %s", cfg.DataDir)
	}
	if cfg.Charts.TopNVolume != 10 || cfg.Charts.TopNFlow != 10 {
		t.Errorf("expected top-N 10 for volume/flow charts, got %d/%d", cfg.Charts.TopNVolume, cfg.Charts.TopNFlow)
	}
	if cfg.Charts.TopNTimeSeries != 5 || cfg.Charts.TopNMarketShare != 5 {
		t.Errorf("expected top-N 5 for time series charts, got %d/%d", cfg.Charts.TopNTimeSeries, cfg.Charts.TopNMarketShare)
	}
	if cfg.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// go test -v --run TestLoadEnvOverride
func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "workers: 2\nstart_date: \"2024-01-01\"\n")
	t.Setenv("FLOWSTAT_WORKERS", "4")
	t.Setenv("FLOWSTAT_CHARTS_TOP_N_VOLUME", "3")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected env to override workers, got %d", cfg.Workers)
	}
	if cfg.Charts.TopNVolume != 3 {
		t.Errorf("expected env to override top_n_volume, got %d", cfg.Charts.TopNVolume)
	}
	if cfg.StartDate != "2024-01-01" {
		t.Errorf("unexpected start_date: %s", cfg.StartDate)
	}
}

// go test -v --run TestLoadMissingExplicitFile
func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

// go test -v --run TestValidate
func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			DataDir:           "data",
			OutputDir:         "out",
			ExchangeAddresses: "exchanges.json",
			Network:           "mainnet",
			AmountUnit:        "btc",
			TimestampUnit:     "s",
			Workers:           1,
			Charts: config.ChartConfig{
				TopNVolume: 10, TopNFlow: 10, TopNTimeSeries: 5, TopNMarketShare: 5,
				WidthPx: 1200, HeightPx: 600,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad start", func(c *config.Config) { c.StartDate = "2024/01/01" }, "start_date"},
		{"bad end", func(c *config.Config) { c.EndDate = "tomorrow" }, "end_date"},
		{"start after end", func(c *config.Config) { c.StartDate, c.EndDate = "2024-02-01", "2024-01-01" }, "after"},
		{"network", func(c *config.Config) { c.Network = "litecoin" }, "network"},
		{"unit", func(c *config.Config) { c.AmountUnit = "mbtc" }, "amount_unit"},
		{"workers", func(c *config.Config) { c.Workers = 0 }, "workers"},
		{"top n", func(c *config.Config) { c.Charts.TopNMarketShare = 0 }, "top_n_market_share"},
		{"s3 bucket", func(c *config.Config) { c.S3.Enabled = true }, "s3.bucket"},
		{"exchanges", func(c *config.Config) { c.ExchangeAddresses = "" }, "exchange_addresses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		DBName:   "exchangeflow",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}

	want := "host=localhost port=5432 user=postgres password=secret dbname=exchangeflow sslmode=disable TimeZone=UTC"
	if got := cfg.DSN("dev"); got != want {
		t.Errorf("unexpected DSN:\n got %s\nwant %s", got, want)
	}
	if got := cfg.AdminDSN("dev"); !strings.Contains(got, "dbname=postgres") {
		t.Errorf("admin DSN should target postgres db: %s", got)
	}
}
