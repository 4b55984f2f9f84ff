package config

import (
	"fmt"
	"time"

	"github.com/contactrelay/mailgateway/pkg/mailbox"
	"github.com/contactrelay/mailgateway/pkg/mailer"
	"github.com/contactrelay/mailgateway/pkg/mq"
	"github.com/contactrelay/mailgateway/pkg/mysql"
	"github.com/spf13/viper"
)

const (
	// DeliveryModeQueue enqueues delivery work; a worker sends it.
	DeliveryModeQueue = "queue"
	// DeliveryModeDirect sends synchronously during create. Queue and direct
	// are mutually exclusive so a message can never be delivered twice by
	// both paths.
	DeliveryModeDirect = "direct"
)

type Config struct {
	API       API            `mapstructure:"api"`
	Metrics   Metrics        `mapstructure:"metrics"`
	Database  mysql.Config   `mapstructure:"database"`
	RabbitMQ  mq.Config      `mapstructure:"rabbitmq"`
	Mailer    mailer.Config  `mapstructure:"mailer"`
	Mailbox   mailbox.Config `mapstructure:"mailbox"`
	Delivery  Delivery       `mapstructure:"delivery"`
	Poller    Poller         `mapstructure:"poller"`
	Cache     Cache          `mapstructure:"cache"`
	Retention Retention      `mapstructure:"retention"`
	Breakers  Breakers       `mapstructure:"breakers"`
}

type API struct {
	Port string `mapstructure:"port"`
}

type Metrics struct {
	Port string `mapstructure:"port"`
}

type Delivery struct {
	Mode       string        `mapstructure:"mode"`
	Queue      string        `mapstructure:"queue"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type Poller struct {
	Interval             time.Duration `mapstructure:"interval"`
	BackoffBase          time.Duration `mapstructure:"backoff_base"`
	BackoffCap           time.Duration `mapstructure:"backoff_cap"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

type Cache struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type Retention struct {
	MaxAgeDays int `mapstructure:"max_age_days"`
}

type Breaker struct {
	WindowSize       int           `mapstructure:"window_size"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	MinCalls         int           `mapstructure:"min_calls"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type Breakers struct {
	Mailer  Breaker `mapstructure:"mailer"`
	Mailbox Breaker `mapstructure:"mailbox"`
}

func Load() (cfg *Config, err error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath("./config")

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Delivery.Mode != DeliveryModeQueue && cfg.Delivery.Mode != DeliveryModeDirect {
		return nil, fmt.Errorf("invalid delivery mode %q", cfg.Delivery.Mode)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.port", ":8080")
	viper.SetDefault("metrics.port", ":9090")

	viper.SetDefault("delivery.mode", DeliveryModeQueue)
	viper.SetDefault("delivery.queue", "mail.deliver")
	viper.SetDefault("delivery.max_retries", 3)
	viper.SetDefault("delivery.retry_delay", 5*time.Second)

	viper.SetDefault("poller.interval", 30*time.Second)
	viper.SetDefault("poller.backoff_base", time.Second)
	viper.SetDefault("poller.backoff_cap", 5*time.Minute)
	viper.SetDefault("poller.max_reconnect_attempts", 10)

	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("cache.sweep_interval", time.Minute)

	viper.SetDefault("retention.max_age_days", 90)

	viper.SetDefault("breakers.mailer.window_size", 10)
	viper.SetDefault("breakers.mailer.failure_threshold", 0.5)
	viper.SetDefault("breakers.mailer.call_timeout", 10*time.Second)
	viper.SetDefault("breakers.mailer.reset_timeout", 30*time.Second)

	viper.SetDefault("breakers.mailbox.window_size", 10)
	viper.SetDefault("breakers.mailbox.failure_threshold", 0.5)
	viper.SetDefault("breakers.mailbox.call_timeout", 20*time.Second)
	viper.SetDefault("breakers.mailbox.reset_timeout", time.Minute)
}
