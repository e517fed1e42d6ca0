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
	} `yaml:"redis"`
	Postgres struct {
		URL         string `yaml:"url"`
		LockTimeout string `yaml:"lock_timeout"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Leaderboard struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"leaderboard"`
	Events struct {
		Buffer            int    `yaml:"buffer"`
		Workers           int    `yaml:"workers"`
		HandlerTimeout    string `yaml:"handler_timeout"`
		AuditStream       string `yaml:"audit_stream"`
		AuditMaxLen       int64  `yaml:"audit_max_len"`
		NotificationQueue string `yaml:"notification_queue"`
		FromAddress       string `yaml:"from_address"`
	} `yaml:"events"`
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
