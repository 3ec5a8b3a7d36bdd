package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the settings read from the process environment. Secrets only
// ever come from here.
type Env struct {
	GeminiAPIKey string `env:"SPELLKITCHEN_GEMINI_API_KEY"`
	GeminiModel  string `env:"SPELLKITCHEN_GEMINI_MODEL"`
	Bind         string `env:"SPELLKITCHEN_BIND"`
	Debug        bool   `env:"SPELLKITCHEN_DEBUG" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv reads Env and overrides the matching fields of cfg. Empty
// variables leave the file values in place.
func ApplyEnv(cfg *Config) error {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return err
	}
	if e.GeminiAPIKey != "" {
		cfg.Recipe.APIKey = e.GeminiAPIKey
	}
	if e.GeminiModel != "" {
		cfg.Recipe.Model = e.GeminiModel
	}
	if e.Bind != "" {
		cfg.Server.Bind = e.Bind
	}
	if e.Debug {
		cfg.Logging.Debug = true
	}
	return validate(*cfg)
}
