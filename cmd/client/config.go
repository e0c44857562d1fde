package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the optional environment of the terminal client.
type Config struct {
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"WARN"`
	Colours       bool          `envconfig:"WHITEBOARD_COLOURS" default:"true"`
	DialTimeout   time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	MaxRecordSize int           `envconfig:"MAX_RECORD_SIZE" default:"16777216"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
