package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	id "loankyc/pkg/domain"
)

// EnvPrefix namespaces every environment variable, e.g. LOANKYC_ADDR.
const EnvPrefix = "LOANKYC"

// Store backends for application snapshots.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full process configuration. Values come from defaults, an
// optional config file, and LOANKYC_* environment variables, in increasing priority.
type Config struct {
	Addr            string        `mapstructure:"ADDR"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	StoreBackend string        `mapstructure:"STORE_BACKEND"`
	SnapshotTTL  time.Duration `mapstructure:"SNAPSHOT_TTL"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	RedisPoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	RedisMinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	RedisDialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	RedisReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	RedisWriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`

	PostgresDSN          string `mapstructure:"POSTGRES_DSN"`
	PostgresMaxOpenConns int    `mapstructure:"POSTGRES_MAX_OPEN_CONNS"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	AuditTopic   string   `mapstructure:"AUDIT_TOPIC"`
	AuditBuffer  int      `mapstructure:"AUDIT_BUFFER"`

	ProviderLatency time.Duration `mapstructure:"PROVIDER_LATENCY"`

	// CallbackMethods report through the provider callback route instead of in-process.
	CallbackMethods  []string      `mapstructure:"CALLBACK_METHODS"`
	CallbackSecret   string        `mapstructure:"CALLBACK_SECRET"`
	CallbackTokenTTL time.Duration `mapstructure:"CALLBACK_TOKEN_TTL"`

	TraceSampleRatio float64 `mapstructure:"TRACE_SAMPLE_RATIO"`
}

// RedisConfig holds the connection settings consumed by the redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     c.RedisPoolSize,
		MinIdleConns: c.RedisMinIdleConns,
		DialTimeout:  c.RedisDialTimeout,
		ReadTimeout:  c.RedisReadTimeout,
		WriteTimeout: c.RedisWriteTimeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("SNAPSHOT_TTL", 72*time.Hour)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_TOPIC", "loankyc.audit")
	v.SetDefault("AUDIT_BUFFER", 256)

	v.SetDefault("PROVIDER_LATENCY", 1500*time.Millisecond)

	v.SetDefault("CALLBACK_METHODS", "")
	v.SetDefault("CALLBACK_SECRET", "")
	v.SetDefault("CALLBACK_TOKEN_TTL", 24*time.Hour)

	v.SetDefault("TRACE_SAMPLE_RATIO", 1.0)
}

// CallbackMethodIDs returns the configured callback methods. Validate has
// already rejected unknown ids.
func (c *Config) CallbackMethodIDs() []id.MethodID {
	out := make([]id.MethodID, 0, len(c.CallbackMethods))
	for _, m := range c.CallbackMethods {
		out = append(out, id.MethodID(m))
	}
	return out
}

// Load reads configuration from the environment and, when configFile is
// non-empty, from that file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	cfg.CallbackMethods = compact(cfg.CallbackMethods)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backends and missing connection settings for the
// selected backend.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%s_REDIS_URL is required for the redis store backend", EnvPrefix)
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required for the postgres store backend", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, redis or postgres)", c.StoreBackend)
	}
	if c.Addr == "" {
		return fmt.Errorf("%s_ADDR must not be empty", EnvPrefix)
	}
	if c.SnapshotTTL < 0 || c.ProviderLatency < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if len(c.KafkaBrokers) > 0 && c.AuditTopic == "" {
		return fmt.Errorf("%s_AUDIT_TOPIC is required when kafka brokers are set", EnvPrefix)
	}
	for _, m := range c.CallbackMethods {
		if _, err := id.ParseMethodID(m); err != nil {
			return fmt.Errorf("%s_CALLBACK_METHODS: unknown verification method %q", EnvPrefix, m)
		}
	}
	if c.CallbackSecret != "" && len(c.CallbackSecret) < 32 {
		return fmt.Errorf("%s_CALLBACK_SECRET must be at least 32 bytes", EnvPrefix)
	}
	if c.CallbackTokenTTL <= 0 {
		return fmt.Errorf("%s_CALLBACK_TOKEN_TTL must be positive", EnvPrefix)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("%s_TRACE_SAMPLE_RATIO must be between 0 and 1", EnvPrefix)
	}
	return nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
