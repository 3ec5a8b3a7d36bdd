// Package config loads the spellkitchen TOML configuration file and layers
// environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Server   ServerConfig   `toml:"server"   json:"server"`
	Camera   CameraConfig   `toml:"camera"   json:"camera"`
	Detector DetectorConfig `toml:"detector" json:"detector"`
	Recipe   RecipeConfig   `toml:"recipe"   json:"recipe"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
}

type ServerConfig struct {
	Bind      string `toml:"bind"       json:"bind"`
	StaticDir string `toml:"static_dir" json:"static_dir"`
}

type CameraConfig struct {
	Device int `toml:"device" json:"device"`
	FPS    int `toml:"fps"    json:"fps"`
}

type DetectorConfig struct {
	MaxHands        int     `toml:"max_hands"         json:"max_hands"`
	MinConfidence   float64 `toml:"min_confidence"    json:"min_confidence"`
	DetectTimeoutMS int     `toml:"detect_timeout_ms" json:"detect_timeout_ms"`
	ScriptPath      string  `toml:"script_path"       json:"script_path"`
	PythonPath      string  `toml:"python_path"       json:"python_path"`
}

// RecipeConfig configures the language model call. The API key never comes
// from the file; see Env.
type RecipeConfig struct {
	Endpoint       string `toml:"endpoint"        json:"endpoint"`
	Model          string `toml:"model"           json:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
	APIKey         string `toml:"-"               json:"-"`
}

type LoggingConfig struct {
	Debug bool `toml:"debug" json:"debug"`
}

// Default returns a Config populated with the values used whenever the
// TOML file omits a field.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Camera: CameraConfig{
			Device: 0,
			FPS:    30,
		},
		Detector: DetectorConfig{
			MaxHands:        2,
			MinConfidence:   0.5,
			DetectTimeoutMS: 500,
		},
		Recipe: RecipeConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: 60,
		},
	}
}

// Load reads the TOML file at path on top of the defaults and validates the
// result. A missing file is not an error: the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DetectTimeout returns the per-frame detection budget.
func (c DetectorConfig) DetectTimeout() time.Duration {
	return time.Duration(c.DetectTimeoutMS) * time.Millisecond
}

// Timeout returns the model request timeout.
func (c RecipeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func validate(cfg Config) error {
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Camera.Device < 0 {
		return errors.New("camera.device must be >= 0")
	}
	if cfg.Camera.FPS < 1 || cfg.Camera.FPS > 120 {
		return errors.New("camera.fps must be between 1 and 120")
	}
	if cfg.Detector.MaxHands < 2 {
		return errors.New("detector.max_hands must be >= 2")
	}
	if cfg.Detector.MinConfidence < 0 || cfg.Detector.MinConfidence > 1 {
		return errors.New("detector.min_confidence must be between 0 and 1")
	}
	if cfg.Detector.DetectTimeoutMS < 1 {
		return errors.New("detector.detect_timeout_ms must be >= 1")
	}
	if cfg.Recipe.Endpoint == "" {
		return errors.New("recipe.endpoint must not be empty")
	}
	if cfg.Recipe.Model == "" {
		return errors.New("recipe.model must not be empty")
	}
	if cfg.Recipe.TimeoutSeconds < 1 {
		return errors.New("recipe.timeout_seconds must be >= 1")
	}
	return nil
}
