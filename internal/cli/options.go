package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/tickreplay/internal/config"
	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
	"github.com/SmitUplenchwar2687/tickreplay/internal/metrics"
	"github.com/SmitUplenchwar2687/tickreplay/internal/notify"
	"github.com/SmitUplenchwar2687/tickreplay/internal/replay"
	"github.com/SmitUplenchwar2687/tickreplay/internal/slice"
)

// clientOptions are the flags shared by commands that touch the cache.
type clientOptions struct {
	configFile        string
	cacheDir          string
	logLevel          string
	pollInterval      time.Duration
	waitTimeout       time.Duration
	notifyBackend     string
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisChannel      string

	// fromConfig keeps the settings that have no flag.
	fromConfig config.Config
}

func (o *clientOptions) addFlags(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().StringVar(&o.configFile, "config", "", "path to JSON config file")
	cmd.Flags().StringVar(&o.cacheDir, "cache-dir", def.CacheDir, "cache root directory")
	cmd.Flags().StringVar(&o.logLevel, "log-level", def.LogLevel, "log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&o.pollInterval, "poll-interval", def.Replay.PollInterval, "how often to check for a missing slice")
	cmd.Flags().DurationVar(&o.waitTimeout, "wait-timeout", def.Replay.WaitTimeout, "give up on a missing slice after this long (0 = wait forever)")
	cmd.Flags().StringVar(&o.notifyBackend, "notify", def.Notify.Backend, "slice notification backend (none, local, redis)")
	cmd.Flags().StringVar(&o.redisHost, "redis-host", def.Notify.Redis.Host, "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", def.Notify.Redis.Port, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	cmd.Flags().StringVar(&o.redisChannel, "redis-channel", def.Notify.Redis.Channel, "redis pub/sub channel for slice announcements")
}

// load reads the config file and environment, then fills every flag the
// user did not set.
func (o *clientOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	o.applyConfigIfUnset(cmd, &cfg)
	return o.normalize()
}

func (o *clientOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.Config) {
	if cfg == nil {
		return
	}
	o.fromConfig = *cfg

	if !cmd.Flags().Changed("cache-dir") {
		o.cacheDir = cfg.CacheDir
	}
	if !cmd.Flags().Changed("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if !cmd.Flags().Changed("poll-interval") {
		o.pollInterval = cfg.Replay.PollInterval
	}
	if !cmd.Flags().Changed("wait-timeout") {
		o.waitTimeout = cfg.Replay.WaitTimeout
	}
	if !cmd.Flags().Changed("notify") {
		o.notifyBackend = cfg.Notify.Backend
	}
	if !cmd.Flags().Changed("redis-host") {
		o.redisHost = cfg.Notify.Redis.Host
	}
	if !cmd.Flags().Changed("redis-port") {
		o.redisPort = cfg.Notify.Redis.Port
	}
	if !cmd.Flags().Changed("redis-password") {
		o.redisPassword = cfg.Notify.Redis.Password
	}
	if !cmd.Flags().Changed("redis-db") {
		o.redisDB = cfg.Notify.Redis.DB
	}
	if !cmd.Flags().Changed("redis-cluster") {
		o.redisCluster = cfg.Notify.Redis.Cluster
	}
	if !cmd.Flags().Changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Notify.Redis.ClusterNodes
	}
	if !cmd.Flags().Changed("redis-channel") {
		o.redisChannel = cfg.Notify.Redis.Channel
	}
}

func (o *clientOptions) normalize() error {
	if o.notifyBackend != config.NotifyRedis || o.redisCluster {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *clientOptions) toConfig() config.Config {
	cfg := o.fromConfig
	if cfg.Endpoint == "" {
		cfg = config.Default()
	}
	cfg.CacheDir = o.cacheDir
	cfg.LogLevel = o.logLevel
	cfg.Replay.PollInterval = o.pollInterval
	cfg.Replay.WaitTimeout = o.waitTimeout
	cfg.Notify.Backend = o.notifyBackend
	cfg.Notify.Redis.Host = o.redisHost
	cfg.Notify.Redis.Port = o.redisPort
	cfg.Notify.Redis.Password = o.redisPassword
	cfg.Notify.Redis.DB = o.redisDB
	cfg.Notify.Redis.Cluster = o.redisCluster
	cfg.Notify.Redis.ClusterNodes = append([]string(nil), o.redisClusterNodes...)
	cfg.Notify.Redis.Channel = o.redisChannel
	return cfg
}

// runtime is everything a command needs to replay or write slices.
type runtime struct {
	cfg       config.Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	notifier  slice.Notifier
	publisher notify.Publisher
	replayer  *replay.Replayer
	closers   []func() error
}

func (o *clientOptions) open(ctx context.Context) (*runtime, error) {
	cfg := o.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(logger.WithLevel(level))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, metrics: metrics.New()}
	rt.closers = append(rt.closers, func() error {
		_ = log.Sync()
		return nil
	})

	switch cfg.Notify.Backend {
	case config.NotifyLocal:
		hub := notify.NewHub()
		rt.notifier, rt.publisher = hub, hub
	case config.NotifyRedis:
		r, err := notify.NewRedis(ctx, cfg.Notify.Redis.NotifyRedis(), notify.WithLogger(log))
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.notifier, rt.publisher = r, r
		rt.closers = append(rt.closers, r.Close)
	}

	waiterOpts := []slice.WaiterOption{
		slice.WithPollInterval(cfg.Replay.PollInterval),
		slice.WithTimeout(cfg.Replay.WaitTimeout),
	}
	if rt.notifier != nil {
		waiterOpts = append(waiterOpts, slice.WithNotifier(rt.notifier))
	}
	rt.replayer = replay.New(cfg.CacheDir,
		replay.WithWaiter(slice.NewWaiter(waiterOpts...)),
		replay.WithLogger(log),
		replay.WithMetrics(rt.metrics),
	)

	log.Debug("client configured",
		logger.NewField("endpoint", cfg.Endpoint),
		logger.NewField("cache_dir", cfg.CacheDir),
		logger.NewField("api_key", redact(cfg.APIKey)),
		logger.NewField("notify", cfg.Notify.Backend))
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}
