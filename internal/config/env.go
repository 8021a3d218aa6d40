package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ServerEnv is the environment consumed by `courtline serve`.
type ServerEnv struct {
	JWTSecret         string `env:"COURTLINE_JWT_SECRET"`
	Addr              string `env:"COURTLINE_ADDR" envDefault:"127.0.0.1:8080"`
	BasePath          string `env:"COURTLINE_BASE_PATH" envDefault:"/v0"`
	AllowPlayerHeader bool   `env:"COURTLINE_ALLOW_PLAYER_HEADER" envDefault:"false"`
	LogLevel          string `env:"COURTLINE_LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"COURTLINE_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServerEnv parses ServerEnv from the process environment.
func LoadServerEnv() (ServerEnv, error) {
	var e ServerEnv
	if err := ParseEnv(&e); err != nil {
		return ServerEnv{}, err
	}
	return e, nil
}
