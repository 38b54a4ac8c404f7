// Package config loads worker settings from environment variables, an
// optional .bunny.yaml file and .env files. Environment wins over file
// values; every key is reachable as BUNNY_<SECTION>_<NAME>.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/hutchstack/bunny-go/query/sqlgen"
)

var AppFs = afero.NewOsFs()

// Database configures the OMOP data source connection.
type Database struct {
	Dialect      string
	DSN          string
	QueryTimeout time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

// TaskAPI configures the upstream RQuest endpoint.
type TaskAPI struct {
	BaseURL      string
	Username     string
	Password     string
	CollectionID string
	EnforceHTTPS bool
	Timeout      time.Duration
}

// Obfuscation configures disclosure control applied to every count.
type Obfuscation struct {
	LowNumberThreshold int
	RoundingTarget     int
}

// Polling configures the worker loop and its per-round-trip retry budget.
type Polling struct {
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int
}

// Config is the full worker configuration.
type Config struct {
	Database    Database
	TaskAPI     TaskAPI
	Obfuscation Obfuscation
	Polling     Polling
	LogLevel    string
}

// Load reads configuration from .env files, an optional .bunny.yaml and the
// environment. Required keys are validated; everything else has a default.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName(".bunny")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "bunny"))

	v.SetEnvPrefix("BUNNY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	_ = v.ReadInConfig()

	// .env files are loaded best-effort; .env.local wins over .env.
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.dialect", "postgres")
	v.SetDefault("db.query_timeout", "270s")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)

	v.SetDefault("task_api.enforce_https", true)
	v.SetDefault("task_api.timeout", "30s")

	v.SetDefault("obfuscation.low_number_threshold", 10)
	v.SetDefault("obfuscation.rounding_target", 10)

	v.SetDefault("polling.interval", "5s")
	v.SetDefault("polling.initial_backoff", "5s")
	v.SetDefault("polling.max_backoff", "60s")
	v.SetDefault("polling.max_retries", 4)

	v.SetDefault("log_level", "info")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Database: Database{
			Dialect:      v.GetString("db.dialect"),
			DSN:          v.GetString("db.dsn"),
			QueryTimeout: v.GetDuration("db.query_timeout"),
			MaxOpenConns: v.GetInt("db.max_open_conns"),
			MaxIdleConns: v.GetInt("db.max_idle_conns"),
		},
		TaskAPI: TaskAPI{
			BaseURL:      v.GetString("task_api.base_url"),
			Username:     v.GetString("task_api.username"),
			Password:     v.GetString("task_api.password"),
			CollectionID: v.GetString("task_api.collection_id"),
			EnforceHTTPS: v.GetBool("task_api.enforce_https"),
			Timeout:      v.GetDuration("task_api.timeout"),
		},
		Obfuscation: Obfuscation{
			LowNumberThreshold: v.GetInt("obfuscation.low_number_threshold"),
			RoundingTarget:     v.GetInt("obfuscation.rounding_target"),
		},
		Polling: Polling{
			Interval:       v.GetDuration("polling.interval"),
			InitialBackoff: v.GetDuration("polling.initial_backoff"),
			MaxBackoff:     v.GetDuration("polling.max_backoff"),
			MaxRetries:     v.GetInt("polling.max_retries"),
		},
		LogLevel: v.GetString("log_level"),
	}
}

// Validate checks the keys without useful defaults.
func (c *Config) Validate() error {
	var problems []string
	if c.Database.DSN == "" {
		problems = append(problems, "db.dsn (BUNNY_DB_DSN) is required")
	}
	if _, err := sqlgen.New(c.Database.Dialect); err != nil {
		problems = append(problems, fmt.Sprintf("db.dialect %q is not supported (one of %s)",
			c.Database.Dialect, strings.Join(sqlgen.Names(), ", ")))
	}
	if c.TaskAPI.BaseURL == "" {
		problems = append(problems, "task_api.base_url (BUNNY_TASK_API_BASE_URL) is required")
	}
	if c.TaskAPI.CollectionID == "" {
		problems = append(problems, "task_api.collection_id (BUNNY_TASK_API_COLLECTION_ID) is required")
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe for logging and diagnostics output: the
// database DSN and task API password are masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.DSN != "" {
		out.Database.DSN = "********"
	}
	if out.TaskAPI.Password != "" {
		out.TaskAPI.Password = "********"
	}
	return out
}
