package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is the optional environment of the coordination server.
// Every field has a default so the server starts with nothing but a port.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	WorkerPoolSize  int           `env:"WORKER_POOL_SIZE,default=64" validate:"gte=1"`
	MaxRecordSize   int           `env:"MAX_RECORD_SIZE,default=16777216" validate:"gte=1024"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gte=0"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT,default=0s" validate:"gte=0"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=1m" validate:"gte=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=1s" validate:"gt=0"`
	HealthPort      int           `env:"HEALTH_PORT,default=0" validate:"gte=0,lte=65535"`
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
