package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		BankTTL  string `yaml:"bank_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
	Quiz struct {
		QuestionTime string   `yaml:"question_time"`
		Tick         string   `yaml:"tick"`
		MarkCorrect  *float64 `yaml:"mark_correct"`
		MarkWrong    *float64 `yaml:"mark_wrong"`
		Admins       []string `yaml:"admins"`
	} `yaml:"quiz"`
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

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Mark returns the configured mark or the fallback when unset.
func Mark(raw *float64, fallback float64) float64 {
	if raw == nil {
		return fallback
	}
	return *raw
}
