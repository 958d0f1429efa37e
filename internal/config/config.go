package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env string `yaml:"env"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Server struct {
		Port            string   `yaml:"port"`
		ReadTimeout     string   `yaml:"read_timeout"`
		WriteTimeout    string   `yaml:"write_timeout"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
	Quiz struct {
		TTL                 string `yaml:"ttl"`
		QuestionsPerSession int    `yaml:"questions_per_session"`
		// Source selects the question pool: static, postgres or generator.
		Source string `yaml:"source"`
		// ResultStore selects the result persister: memory, postgres or mongo.
		ResultStore string `yaml:"result_store"`
	} `yaml:"quiz"`
	Leaderboard struct {
		Limit        int    `yaml:"limit"`
		FetchTimeout string `yaml:"fetch_timeout"`
	} `yaml:"leaderboard"`
	Generator struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Topic   string `yaml:"topic"`
		Count   int    `yaml:"count"`
		Timeout string `yaml:"timeout"`
	} `yaml:"generator"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Env, "APP_ENV")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Mongo.URI, "MONGO_URI")
	override(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Generator.APIKey, "GENERATOR_API_KEY")
	override(&cfg.Quiz.Source, "QUESTION_SOURCE")
	override(&cfg.Quiz.ResultStore, "RESULT_STORE")
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			cfg.Redis.DB = db
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "trivia"
	}
	if cfg.RabbitMQ.Exchange == "" {
		cfg.RabbitMQ.Exchange = "trivia.events"
	}
	if cfg.Quiz.Source == "" {
		cfg.Quiz.Source = "static"
	}
	if cfg.Quiz.ResultStore == "" {
		cfg.Quiz.ResultStore = "memory"
		if cfg.Postgres.URL != "" {
			cfg.Quiz.ResultStore = "postgres"
		}
	}
	if cfg.Generator.Count <= 0 {
		cfg.Generator.Count = 10
	}
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
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
