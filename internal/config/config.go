package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"quizmusic-service/internal/domain"
	"quizmusic-service/internal/leveling"
)

type Config struct {
	Env    string `yaml:"env"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionCount int    `yaml:"question_count"`
		CatalogTTL    string `yaml:"catalog_ttl"`
		SessionTTL    string `yaml:"session_ttl"`
	} `yaml:"quiz"`
	Levels []leveling.Band `yaml:"levels"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults. A malformed file, an unparsable override or an
// invalid duration is an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("QUIZ_QUESTION_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: QUIZ_QUESTION_COUNT %q is not a number", domain.ErrConfiguration, v)
		}
		c.Quiz.QuestionCount = n
	}
	return nil
}

func (c *Config) validate() error {
	for name, raw := range map[string]string{
		"quiz.catalog_ttl": c.Quiz.CatalogTTL,
		"quiz.session_ttl": c.Quiz.SessionTTL,
	} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s %q: %v", domain.ErrConfiguration, name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", domain.ErrConfiguration, name, raw)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Quiz.QuestionCount <= 0 {
		c.Quiz.QuestionCount = domain.DefaultQuestionCount
	}
}

// LevelTable validates the configured bands, falling back to the default table.
func (c Config) LevelTable() (*leveling.Table, error) {
	if len(c.Levels) == 0 {
		return leveling.NewTable(leveling.DefaultBands())
	}
	return leveling.NewTable(c.Levels)
}

// TTLDuration parses a duration string or returns the fallback if empty.
// Load has already rejected unparsable values.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
