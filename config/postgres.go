package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM parameter names holding production database credentials.
const (
	ssmDBHost     = "FLOWSTAT_DB_HOST"
	ssmDBUser     = "FLOWSTAT_DB_USER"
	ssmDBPassword = "FLOWSTAT_DB_PASSWORD"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CreateDB bool   `mapstructure:"create_db"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// parameterStore fetches an SSM parameter, returning "" when unavailable.
var parameterStore = getParameterStoreValue

// DSN builds a libpq connection string. In the "prod" environment host and
// credentials are read from AWS SSM Parameter Store; a parameter that cannot
// be fetched falls back to the configured value.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.credentials(env)
	return cfg.dsn(host, user, password, cfg.DBName)
}

// AdminDSN is DSN pointed at the "postgres" maintenance database, used to
// create the target database before connecting to it.
func (cfg *PostgresConfig) AdminDSN(env string) string {
	host, user, password := cfg.credentials(env)
	return cfg.dsn(host, user, password, "postgres")
}

func (cfg *PostgresConfig) credentials(env string) (host, user, password string) {
	host, user, password = cfg.Host, cfg.User, cfg.Password

	if env == "prod" {
		host = orDefault(parameterStore(ssmDBHost, true), host)
		user = orDefault(parameterStore(ssmDBUser, true), user)
		password = orDefault(parameterStore(ssmDBPassword, true), password)
	}
	return host, user, password
}

func (cfg *PostgresConfig) dsn(host, user, password, dbName string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	baseCtx := context.Background()
	ctxWithTimeout, cancel := context.WithTimeout(baseCtx, 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
