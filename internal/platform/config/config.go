package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration consumed by the broker binaries. Values
// come from environment variables (prefix APP) with an optional
// config.defaults.yaml underneath.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// QueueURL is the SQS queue from which email pointer messages are
	// read. Required by the broker, unused by the sweeper.
	QueueURL string `mapstructure:"QUEUE_URL" validate:"omitempty,url"`
	// TableName is the DynamoDB table (or Postgres table when the
	// postgres backend is selected) holding email records.
	TableName string `mapstructure:"TABLE_NAME" validate:"required"`

	AWSRegion string `mapstructure:"AWS_REGION"`
	// AWSEndpoint overrides the AWS endpoint, e.g. a LocalStack URL.
	AWSEndpoint string `mapstructure:"AWS_ENDPOINT" validate:"omitempty,url"`

	// StoreBackend selects the record store implementation.
	StoreBackend string `mapstructure:"STORE_BACKEND" validate:"oneof=dynamodb postgres"`
	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`

	// DryRun makes the broker run exactly one poll-process cycle without
	// deleting anything and exit with the cycle's outcome.
	DryRun bool `mapstructure:"DRY_RUN"`

	MaxMessages              int `mapstructure:"MAX_MESSAGES" validate:"min=1,max=10"`
	VisibilityTimeoutSeconds int `mapstructure:"VISIBILITY_TIMEOUT_SECONDS" validate:"min=1"`
	WaitTimeSeconds          int `mapstructure:"WAIT_TIME_SECONDS" validate:"min=0,max=20"`

	MetricsPort int `mapstructure:"METRICS_PORT" validate:"min=1,max=65535"`

	// SweepMaxAge is how long a record may sit in Sending before the
	// sweeper considers it abandoned.
	SweepMaxAge time.Duration `mapstructure:"SWEEP_MAX_AGE" validate:"min=1m"`
}

// Load reads configuration for the named service from the environment and
// optional yaml defaults, then validates it.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QUEUE_URL", "")
	v.SetDefault("TABLE_NAME", "emails")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("AWS_ENDPOINT", "")
	v.SetDefault("STORE_BACKEND", "dynamodb")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("DRY_RUN", false)
	v.SetDefault("MAX_MESSAGES", 1)
	v.SetDefault("VISIBILITY_TIMEOUT_SECONDS", 30)
	v.SetDefault("WAIT_TIME_SECONDS", 20)
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("SWEEP_MAX_AGE", "15m")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config for %s: %w", serviceName, err)
		}
		// No defaults file is fine; environment and defaults cover it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
