package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/tickreplay/internal/logger"
)

const (
	defaultRedisPoolSize    = 10
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second

	// DefaultChannel carries absolute slice paths.
	DefaultChannel = "tickreplay:slices:ready"
)

// RedisConfig configures the Redis notifier.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	Cluster      bool
	ClusterNodes []string
	Channel      string
}

// Redis shares slice announcements between processes over Redis pub/sub.
// Messages received on the channel are fanned out through a local Hub.
type Redis struct {
	client  redis.UniversalClient
	pubsub  *redis.PubSub
	channel string
	hub     *Hub
	logger  logger.Interface
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// RedisOption configures a Redis notifier.
type RedisOption func(*Redis)

// WithLogger logs received announcements at debug level.
func WithLogger(l logger.Interface) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis connects, subscribes to the configured channel and starts the
// receive loop.
func NewRedis(ctx context.Context, cfg *RedisConfig, opts ...RedisOption) (*Redis, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}

	r := &Redis{
		client:  newRedisClient(conf),
		channel: conf.Channel,
		hub:     NewHub(),
		logger:  logger.Nop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.pingWithRetry(ctx, conf.MaxRetries); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	r.pubsub = r.client.Subscribe(ctx, r.channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		_ = r.pubsub.Close()
		_ = r.client.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}

	go r.loop(r.pubsub.Channel())
	return r, nil
}

func (r *Redis) loop(msgs <-chan *redis.Message) {
	defer close(r.done)
	for msg := range msgs {
		n := r.hub.Announce(msg.Payload)
		r.logger.Debug("slice announced",
			logger.NewField("path", msg.Payload),
			logger.NewField("waiters", n))
	}
}

// Notify registers interest in path.
func (r *Redis) Notify(ctx context.Context, path string) (<-chan struct{}, func()) {
	return r.hub.Notify(ctx, path)
}

// Publish announces path to every subscriber, this process included.
func (r *Redis) Publish(ctx context.Context, path string) error {
	if err := r.client.Publish(ctx, r.channel, pathKey(path)).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Close unsubscribes and releases Redis resources. It is idempotent.
func (r *Redis) Close() error {
	r.closeOnce.Do(func() {
		err := r.pubsub.Close()
		<-r.done
		r.closeErr = errors.Join(err, r.client.Close())
	})
	return r.closeErr
}

func (r *Redis) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := r.client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.Channel == "" {
		conf.Channel = DefaultChannel
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
