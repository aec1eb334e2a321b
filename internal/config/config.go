package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"quiz-engine/internal/app"
)

type Config struct {
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
		AnswerWindow    string `yaml:"answer_window"`
		QuestionTTL     string `yaml:"question_ttl"`
		ResponseTimeTTL string `yaml:"response_time_ttl"`
	} `yaml:"quiz"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Settings converts the quiz section into engine settings, falling back to the
// defaults for empty or malformed durations.
func (c Config) Settings() app.Settings {
	return app.Settings{
		AnswerWindow:    TTLDuration(c.Quiz.AnswerWindow, app.DefaultAnswerWindow),
		QuestionTTL:     TTLDuration(c.Quiz.QuestionTTL, app.DefaultQuestionTTL),
		ResponseTimeTTL: TTLDuration(c.Quiz.ResponseTimeTTL, app.DefaultResponseTimeTTL),
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
