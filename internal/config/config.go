// Package config loads survival-check settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/survival-check/internal/session"
)

// DefaultBaseURL is the public deployment of the scoring service.
const DefaultBaseURL = "https://titanic-survival-prediction-98nz.onrender.com"

// Config holds application configuration.
type Config struct {
	Scorer     ScorerConfig
	Server     ServerConfig
	Redis      RedisConfig
	Session    SessionConfig
	Validation ValidationConfig
	Batch      BatchConfig
	Log        LogConfig
}

// ScorerConfig points at the remote scoring service.
type ScorerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds each prediction; zero waits indefinitely.
	Timeout time.Duration
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig enables the session state mirror when Addr is set.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// SessionConfig holds orchestration settings.
type SessionConfig struct {
	SubmitPolicy string `mapstructure:"submit_policy"`
}

// ValidationConfig toggles client-side range checks.
type ValidationConfig struct {
	Strict bool
}

// BatchConfig holds batch prediction settings.
type BatchConfig struct {
	Concurrency int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix TITANIC_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("scorer.base_url", DefaultBaseURL)
	v.SetDefault("scorer.timeout", time.Duration(0))
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("session.submit_policy", string(session.PolicySupersede))
	v.SetDefault("validation.strict", false)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	cfgPath := os.Getenv("TITANIC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "survival-check"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TITANIC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the rest of the program cannot use.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Scorer.BaseURL) == "" {
		errs = append(errs, errors.New("scorer.base_url is required"))
	}
	if c.Scorer.Timeout < 0 {
		errs = append(errs, errors.New("scorer.timeout must not be negative"))
	}
	if _, err := session.ParsePolicy(c.Session.SubmitPolicy); err != nil {
		errs = append(errs, fmt.Errorf("session.submit_policy: %w", err))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, errors.New("batch.concurrency must be at least 1"))
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		errs = append(errs, errors.New("redis.ttl must be positive"))
	}
	return errors.Join(errs...)
}

// SessionOptions translates the orchestration settings.
func (c Config) SessionOptions() session.Options {
	policy, _ := session.ParsePolicy(c.Session.SubmitPolicy)
	return session.Options{Policy: policy, Strict: c.Validation.Strict}
}
