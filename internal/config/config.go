package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env             string `yaml:"env"`
	LogLevel        string `yaml:"log_level"`
	ShortCodeLength int    `yaml:"short_code_length"`
	HTTPServer      `yaml:"http_server"`
	Database        `yaml:"database"`
	Cache           `yaml:"cache"`
	Reconciler      `yaml:"reconciler"`
	Clicks          `yaml:"clicks"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           3000,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TLS reports whether both a certificate and a key are configured.
func (s *HTTPServer) TLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

// Database configures the durable store. The URI scheme selects the driver:
// postgres:// or postgresql:// for Postgres, sqlite://<path> for SQLite.
type Database struct {
	URI             string        `yaml:"uri"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultDatabase = Database{
	URI:             "sqlite://linkcache.db",
	QueryTimeout:    2 * time.Second,
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

// Cache configures the Fast Cache. The URI scheme selects the backend:
// redis:// or rediss:// for Redis, memory:// for an in-process cache. An empty
// URI disables caching.
type Cache struct {
	URI                 string        `yaml:"uri"`
	TTL                 time.Duration `yaml:"ttl"`
	OpTimeout           time.Duration `yaml:"op_timeout"`
	FailureThreshold    int           `yaml:"failure_threshold"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ScanCount           int64         `yaml:"scan_count"`
}

var defaultCache = Cache{
	TTL:                 time.Hour,
	OpTimeout:           100 * time.Millisecond,
	FailureThreshold:    5,
	HealthCheckInterval: 10 * time.Second,
	ScanCount:           500,
}

type Reconciler struct {
	Interval time.Duration `yaml:"interval"`
}

var defaultReconciler = Reconciler{
	Interval: time.Minute,
}

type Clicks struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

var defaultClicks = Clicks{
	Workers:     4,
	QueueSize:   1024,
	TaskTimeout: 2 * time.Second,
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, in that order.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.ShortCodeLength = 10
	cfg.HTTPServer = defaultHTTPServer
	cfg.Database = defaultDatabase
	cfg.Cache = defaultCache
	cfg.Reconciler = defaultReconciler
	cfg.Clicks = defaultClicks
}

// applyEnv overrides cfg with the deployment environment variables.
// CACHE_TTL is in seconds and SYNC_INTERVAL in milliseconds.
func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	integer := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
			return
		}
		*dst = n
	}

	duration := func(key string, unit time.Duration, dst *time.Duration) {
		var n int
		integer(key, &n)
		if _, ok := os.LookupEnv(key); ok && n > 0 {
			*dst = time.Duration(n) * unit
		}
	}

	str("ENV", &cfg.Env)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("DB_URI", &cfg.Database.URI)
	str("CACHE_URI", &cfg.Cache.URI)
	integer("PORT", &cfg.HTTPServer.Port)
	integer("CODE_LENGTH", &cfg.ShortCodeLength)
	duration("CACHE_TTL", time.Second, &cfg.Cache.TTL)
	duration("SYNC_INTERVAL", time.Millisecond, &cfg.Reconciler.Interval)

	return errors.Join(errs...)
}
