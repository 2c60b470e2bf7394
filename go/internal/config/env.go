package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mcdev12/fieldofplay/go/internal/dbconfig"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv reads .env files into the environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Server is the environment of the field of play server.
type Server struct {
	HTTPAddr        string   `env:"FOP_HTTP_ADDR" envDefault:":8080"`
	CompetitionFile string   `env:"FOP_COMPETITION_FILE" envDefault:"competition.yaml"`
	AllowedOrigins  []string `env:"FOP_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel        string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string   `env:"LOG_FORMAT" envDefault:"console"`

	NATSURL    string `env:"NATS_URL"`
	NATSStream string `env:"NATS_STREAM" envDefault:"FOP"`

	DB dbconfig.Config
}

// LoadServer reads .env and the FOP_* variables.
func LoadServer() (Server, error) {
	if err := LoadDotEnv(); err != nil {
		return Server{}, err
	}
	var s Server
	if err := ParseEnv(&s); err != nil {
		return Server{}, err
	}
	if err := s.DB.Validate(); err != nil {
		return Server{}, err
	}
	return s, nil
}
