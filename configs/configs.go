package configs

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Queue types accepted by QUEUE_TYPE.
const (
	QueueTypeSQS      = "sqs"
	QueueTypeRedis    = "redis"
	QueueTypeRabbitMQ = "rabbitmq"
	QueueTypePostgres = "postgres"
)

// Config defines all environment variables and derived config for the queue tools.
type Config struct {
	// Transformed time.Duration fields (not loaded from env directly)
	PollingIntervalDuration   time.Duration `env:"-"`
	VisibilityTimeoutDuration time.Duration `env:"-"`
	RetryBaseDelay            time.Duration `env:"-"`
	RetryMaxDelay             time.Duration `env:"-"`

	QueueType              string `env:"QUEUE_TYPE" envDefault:"redis" validate:"oneof=sqs redis rabbitmq postgres"`
	QueueAsync             bool   `env:"QUEUE_ASYNC" envDefault:"false"`
	QueueVisibilityTimeout int32  `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"30" validate:"gte=0,lte=43200"`

	QueueAwsSqsRegion   string `env:"QUEUE_AWS_SQS_REGION" validate:"required_if=QueueType sqs"`
	QueueAwsSqsUrl      string `env:"QUEUE_AWS_SQS_URL" validate:"required_if=QueueType sqs"`
	QueueAwsSqsEndpoint string `env:"QUEUE_AWS_SQS_ENDPOINT" validate:"omitempty,url"`

	QueueRedisEndpoint string `env:"QUEUE_REDIS_ENDPOINT" validate:"required_if=QueueType redis"`
	QueueRedisDB       int    `env:"QUEUE_REDIS_DB" envDefault:"0" validate:"gte=0"`
	QueueRedisKey      string `env:"QUEUE_REDIS_KEY" envDefault:"queue-default"`

	QueueRabbitMQURL   string `env:"QUEUE_RABBITMQ_URL" validate:"required_if=QueueType rabbitmq"`
	QueueRabbitMQQueue string `env:"QUEUE_RABBITMQ_QUEUE" validate:"required_if=QueueType rabbitmq"`

	QueuePostgresDSN   string `env:"QUEUE_POSTGRES_DSN" validate:"required_if=QueueType postgres"`
	QueuePostgresQueue string `env:"QUEUE_POSTGRES_QUEUE" envDefault:"default"`

	QueueRetryAttempts    int   `env:"QUEUE_RETRY_ATTEMPTS" envDefault:"1" validate:"gte=1,lte=10"`
	QueueRetryBaseDelayMs int64 `env:"QUEUE_RETRY_BASE_DELAY_MS" envDefault:"100" validate:"gte=0"`
	QueueRetryMaxDelayMs  int64 `env:"QUEUE_RETRY_MAX_DELAY_MS" envDefault:"5000" validate:"gte=0"`
	QueueRetrySend        bool  `env:"QUEUE_RETRY_SEND" envDefault:"false"`

	PollingInterval int32  `env:"POLLING_INTERVAL" envDefault:"5" validate:"gt=0"`
	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Parse loads configuration from environment variables, validates and normalizes it.
func Parse() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their env variable name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validate performs all required configuration checks.
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.QueueRetryMaxDelayMs < c.QueueRetryBaseDelayMs {
		return errors.New("QUEUE_RETRY_MAX_DELAY_MS must not be lower than QUEUE_RETRY_BASE_DELAY_MS")
	}

	return nil
}

// normalize converts int values to duration and sets derived fields.
func (c *Config) normalize() {
	c.PollingIntervalDuration = time.Duration(c.PollingInterval) * time.Second
	c.VisibilityTimeoutDuration = time.Duration(c.QueueVisibilityTimeout) * time.Second
	c.RetryBaseDelay = time.Duration(c.QueueRetryBaseDelayMs) * time.Millisecond
	c.RetryMaxDelay = time.Duration(c.QueueRetryMaxDelayMs) * time.Millisecond
}
