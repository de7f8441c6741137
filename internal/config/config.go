package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the configuration for the workflow engine.
type Config struct {
	HTTP struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"http"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Store struct {
		Backend      string        `mapstructure:"backend"`
		ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	} `mapstructure:"store"`
	Redis struct {
		URL       string `mapstructure:"url"`
		Host      string `mapstructure:"host"`
		Port      int    `mapstructure:"port"`
		DB        int    `mapstructure:"db"`
		Password  string `mapstructure:"password"`
		KeyPrefix string `mapstructure:"key_prefix"`
	} `mapstructure:"redis"`
	Postgres struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"postgres"`
	Workflow struct {
		MaxConcurrent int    `mapstructure:"max_concurrent"`
		Admission     string `mapstructure:"admission"`
	} `mapstructure:"workflow"`
}

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// key -> environment variable
var envBindings = map[string]string{
	"http.port":               "HTTP_PORT",
	"log.level":               "LOG_LEVEL",
	"store.backend":           "STORE_BACKEND",
	"store.probe_timeout":     "STORE_PROBE_TIMEOUT",
	"redis.url":               "REDIS_URL",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.db":                "REDIS_DB",
	"redis.password":          "REDIS_PASSWORD",
	"redis.key_prefix":        "REDIS_KEY_PREFIX",
	"postgres.dsn":            "POSTGRES_DSN",
	"workflow.max_concurrent": "MAX_CONCURRENT_WORKFLOWS",
	"workflow.admission":      "WORKFLOW_ADMISSION",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8000)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("store.backend", BackendRedis)
	v.SetDefault("store.probe_timeout", 2*time.Second)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.key_prefix", "workflow:")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("workflow.max_concurrent", 10)
	v.SetDefault("workflow.admission", "reject")
}

// LoadConfig reads an optional .env file, an optional config.yaml from the
// working directory or ./config, and the environment. Environment variables
// win over the file, the file wins over defaults.
func LoadConfig(envFiles ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes enumerated values and rejects unknown ones.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return errors.Errorf("unknown store backend '%s'", c.Store.Backend)
	}
	c.Workflow.Admission = strings.ToLower(strings.TrimSpace(c.Workflow.Admission))
	switch c.Workflow.Admission {
	case "reject", "queue":
	default:
		return errors.Errorf("unknown workflow admission mode '%s'", c.Workflow.Admission)
	}
	if c.Workflow.MaxConcurrent < 0 {
		return errors.New("workflow.max_concurrent cannot be negative")
	}
	if c.Store.ProbeTimeout <= 0 {
		c.Store.ProbeTimeout = 2 * time.Second
	}
	return nil
}

// RedisAddr is the host:port pair used when no Redis URL is configured.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// HTTPAddr is the listen address of the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
