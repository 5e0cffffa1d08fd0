package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/notify"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "TICKREPLAY_"

// Notifier backends.
const (
	NotifyNone  = "none"
	NotifyLocal = "local"
	NotifyRedis = "redis"
)

// Config is the top-level configuration of a tickreplay client.
type Config struct {
	Endpoint string       `env:"ENDPOINT"`
	CacheDir string       `env:"CACHE_DIR"`
	APIKey   string       `env:"API_KEY"`
	LogLevel string       `env:"LOG_LEVEL"`
	Replay   ReplayConfig `envPrefix:"REPLAY_"`
	Server   ServerConfig `envPrefix:"SERVER_"`
	Notify   NotifyConfig `envPrefix:"NOTIFY_"`
}

// ReplayConfig controls slice waiting.
type ReplayConfig struct {
	PollInterval time.Duration `env:"POLL_INTERVAL"`
	// WaitTimeout bounds the wait for one slice; zero waits forever.
	WaitTimeout time.Duration `env:"WAIT_TIMEOUT"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `env:"ADDR"`
}

// NotifyConfig selects how slice announcements travel.
type NotifyConfig struct {
	Backend string      `env:"BACKEND"`
	Redis   RedisConfig `envPrefix:"REDIS_"`
}

// RedisConfig configures the Redis notifier.
type RedisConfig struct {
	Host         string        `env:"HOST"`
	Port         int           `env:"PORT"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB"`
	PoolSize     int           `env:"POOL_SIZE"`
	MaxRetries   int           `env:"MAX_RETRIES"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"`
	Cluster      bool          `env:"CLUSTER"`
	ClusterNodes []string      `env:"CLUSTER_NODES" envSeparator:","`
	Channel      string        `env:"CHANNEL"`
}

// DefaultCacheDir is <tmp>/.tardis-cache.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), ".tardis-cache")
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Endpoint: "https://api.tardis.dev/v1",
		CacheDir: DefaultCacheDir(),
		LogLevel: "info",
		Replay: ReplayConfig{
			PollInterval: slice.DefaultPollInterval,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Notify: NotifyConfig{
			Backend: NotifyLocal,
			Redis: RedisConfig{
				Host:        "localhost",
				Port:        6379,
				PoolSize:    10,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
				Channel:     notify.DefaultChannel,
			},
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Replay.PollInterval <= 0 {
		return fmt.Errorf("replay.poll_interval must be positive, got %s", c.Replay.PollInterval)
	}
	if c.Replay.WaitTimeout < 0 {
		return fmt.Errorf("replay.wait_timeout must not be negative, got %s", c.Replay.WaitTimeout)
	}
	switch c.Notify.Backend {
	case NotifyNone, NotifyLocal:
	case NotifyRedis:
		r := c.Notify.Redis
		if r.Cluster && len(r.ClusterNodes) == 0 {
			return fmt.Errorf("notify.redis.cluster_nodes is required when cluster=true")
		}
		if !r.Cluster && (r.Host == "" || r.Port <= 0) {
			return fmt.Errorf("notify.redis.host and port are required, got %q:%d", r.Host, r.Port)
		}
	default:
		return fmt.Errorf("unknown notify backend %q, must be one of: none, local, redis", c.Notify.Backend)
	}
	return nil
}

// NotifyRedis converts the Redis settings for the notifier.
func (r RedisConfig) NotifyRedis() *notify.RedisConfig {
	return &notify.RedisConfig{
		Host:         r.Host,
		Port:         r.Port,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		MaxRetries:   r.MaxRetries,
		DialTimeout:  r.DialTimeout,
		Cluster:      r.Cluster,
		ClusterNodes: append([]string(nil), r.ClusterNodes...),
		Channel:      r.Channel,
	}
}

// Load builds a Config from defaults, the optional JSON file at path, a
// .env file in the working directory when present, and TICKREPLAY_*
// variables, in that order of increasing precedence.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}

	_ = godotenv.Load()
	if err := FromEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays TICKREPLAY_* variables onto cfg. Unset variables leave
// fields untouched.
func FromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Endpoint != "" {
		cfg.Endpoint = raw.Endpoint
	}
	if raw.CacheDir != "" {
		cfg.CacheDir = raw.CacheDir
	}
	if raw.APIKey != "" {
		cfg.APIKey = raw.APIKey
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if cfg.Replay.PollInterval, err = mergeDuration(cfg.Replay.PollInterval, raw.Replay.PollInterval, "replay.poll_interval"); err != nil {
		return cfg, err
	}
	if cfg.Replay.WaitTimeout, err = mergeDuration(cfg.Replay.WaitTimeout, raw.Replay.WaitTimeout, "replay.wait_timeout"); err != nil {
		return cfg, err
	}
	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Notify.Backend != "" {
		cfg.Notify.Backend = raw.Notify.Backend
	}

	r := raw.Notify.Redis
	if r.Host != "" {
		cfg.Notify.Redis.Host = r.Host
	}
	if r.Port > 0 {
		cfg.Notify.Redis.Port = r.Port
	}
	if r.Password != "" {
		cfg.Notify.Redis.Password = r.Password
	}
	if r.DB > 0 {
		cfg.Notify.Redis.DB = r.DB
	}
	if r.PoolSize > 0 {
		cfg.Notify.Redis.PoolSize = r.PoolSize
	}
	if r.MaxRetries > 0 {
		cfg.Notify.Redis.MaxRetries = r.MaxRetries
	}
	if cfg.Notify.Redis.DialTimeout, err = mergeDuration(cfg.Notify.Redis.DialTimeout, r.DialTimeout, "notify.redis.dial_timeout"); err != nil {
		return cfg, err
	}
	if r.Cluster != nil {
		cfg.Notify.Redis.Cluster = *r.Cluster
	}
	if len(r.ClusterNodes) > 0 {
		cfg.Notify.Redis.ClusterNodes = r.ClusterNodes
	}
	if r.Channel != "" {
		cfg.Notify.Redis.Channel = r.Channel
	}

	return cfg, nil
}

func mergeDuration(current time.Duration, raw, field string) (time.Duration, error) {
	if raw == "" {
		return current, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return current, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// rawConfig is the JSON-friendly representation with string durations.
type rawConfig struct {
	Endpoint string `json:"endpoint"`
	CacheDir string `json:"cache_dir"`
	APIKey   string `json:"api_key"`
	LogLevel string `json:"log_level"`
	Replay   struct {
		PollInterval string `json:"poll_interval"`
		WaitTimeout  string `json:"wait_timeout"`
	} `json:"replay"`
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Notify struct {
		Backend string `json:"backend"`
		Redis   struct {
			Host         string   `json:"host"`
			Port         int      `json:"port"`
			Password     string   `json:"password"`
			DB           int      `json:"db"`
			PoolSize     int      `json:"pool_size"`
			MaxRetries   int      `json:"max_retries"`
			DialTimeout  string   `json:"dial_timeout"`
			Cluster      *bool    `json:"cluster"`
			ClusterNodes []string `json:"cluster_nodes"`
			Channel      string   `json:"channel"`
		} `json:"redis"`
	} `json:"notify"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "endpoint": "https://api.tardis.dev/v1",
  "cache_dir": "/tmp/.tardis-cache",
  "api_key": "",
  "log_level": "info",
  "replay": {
    "poll_interval": "300ms",
    "wait_timeout": "0s"
  },
  "server": {
    "addr": ":8080"
  },
  "notify": {
    "backend": "local",
    "redis": {
      "host": "localhost",
      "port": 6379,
      "channel": "tickreplay:slices:ready"
    }
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
