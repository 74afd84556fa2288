// Package config reads the YAML configuration of a grimoire client.
//
//	dialect: postgres
//	dsn: ${DATABASE_URL}
//	schema: models.yaml
//	pool:
//	  maxOpenConns: 20
//	  connMaxLifetime: 5m
//	log:
//	  level: debug
//	  format: json
//	  slowThreshold: 200ms
//	cache:
//	  enabled: true
//	  ttl: 1m
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/grimoire/dialect"
)

// Defaults applied to unset values.
const (
	DefaultMaxOpenConns  = 10
	DefaultMaxIdleConns  = 2
	DefaultSlowThreshold = 100 * time.Millisecond
)

// Config is the configuration of a client.
type Config struct {
	// Dialect is one of mysql, postgres or sqlite. Aliases such as
	// mariadb or postgresql are accepted and normalized.
	Dialect string `yaml:"dialect"`

	// DSN is the data source name passed to the driver. Environment
	// variables in the form $VAR or ${VAR} are expanded.
	DSN string `yaml:"dsn"`

	// Schema is an optional path to a YAML schema file.
	Schema string `yaml:"schema,omitempty"`

	Pool  Pool  `yaml:"pool,omitempty"`
	Log   Log   `yaml:"log,omitempty"`
	Cache Cache `yaml:"cache,omitempty"`
}

// Pool configures the database/sql connection pool.
type Pool struct {
	MaxOpenConns    int           `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns    int           `yaml:"maxIdleConns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime,omitempty"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime,omitempty"`
}

// Log configures statement logging.
type Log struct {
	// Level is a slog level name: debug, info, warn or error.
	Level string `yaml:"level,omitempty"`
	// Format is text or json.
	Format string `yaml:"format,omitempty"`
	// SlowThreshold is the duration above which statements are logged as
	// slow.
	SlowThreshold time.Duration `yaml:"slowThreshold,omitempty"`
}

// Cache configures the result cache.
type Cache struct {
	Enabled bool          `yaml:"enabled,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document, applies defaults and validates
// the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config: empty document")
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.DSN = os.ExpandEnv(cfg.DSN)
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults normalizes the dialect and fills unset values.
func (c *Config) Defaults() {
	c.Dialect = dialect.Normalize(c.Dialect)
	if c.Pool.MaxOpenConns == 0 {
		c.Pool.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Pool.MaxIdleConns == 0 {
		c.Pool.MaxIdleConns = min(DefaultMaxIdleConns, c.Pool.MaxOpenConns)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.SlowThreshold == 0 {
		c.Log.SlowThreshold = DefaultSlowThreshold
	}
}

// Validate reports every invalid value of the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch c.Dialect {
	case dialect.MySQL, dialect.Postgres, dialect.SQLite:
	case "":
		errs = append(errs, errors.New("dialect is required"))
	default:
		errs = append(errs, fmt.Errorf("unsupported dialect %q", c.Dialect))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is required"))
	}
	if c.Pool.MaxOpenConns < 0 || c.Pool.MaxIdleConns < 0 {
		errs = append(errs, errors.New("pool sizes must not be negative"))
	}
	if c.Pool.MaxOpenConns > 0 && c.Pool.MaxIdleConns > c.Pool.MaxOpenConns {
		errs = append(errs, fmt.Errorf("maxIdleConns %d exceeds maxOpenConns %d", c.Pool.MaxIdleConns, c.Pool.MaxOpenConns))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return lv, nil
}

// Logger returns a logger writing to w with the configured level and
// format.
func (l Log) Logger(w io.Writer) *slog.Logger {
	lv, err := l.level()
	if err != nil {
		lv = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lv}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
