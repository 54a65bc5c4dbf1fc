// Package redis opens the Redis connection used for usage counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/that-cod/reepost-ai-sub001/pkg/config"
)

const defaultTimeout = 5 * time.Second

var ErrNotConfigured = errors.New("redis is not configured")

// Config accepts either a single URL or a list of addresses. With
// MasterName set the addresses are Sentinels; several addresses without
// it form a Cluster.
type Config struct {
	URL        string
	Addrs      []string
	MasterName string
	Password   string
	DB         int
	Timeout    time.Duration
}

// LoadConfig reads REDIS_* variables.
func LoadConfig() Config {
	return Config{
		URL:        config.GetEnv("REDIS_URL", ""),
		Addrs:      config.GetEnvList("REDIS_ADDRS"),
		MasterName: config.GetEnv("REDIS_MASTER_NAME", ""),
		Password:   config.GetEnv("REDIS_PASSWORD", ""),
		DB:         config.GetEnvInt("REDIS_DB", 0),
		Timeout:    config.GetEnvDuration("REDIS_TIMEOUT", defaultTimeout),
	}
}

func (c Config) Configured() bool {
	return c.URL != "" || len(c.Addrs) > 0
}

func (c Config) options() (*goredis.UniversalOptions, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := &goredis.UniversalOptions{
		Addrs:        c.Addrs,
		MasterName:   c.MasterName,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	if c.URL != "" {
		parsed, err := goredis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.Addrs = []string{parsed.Addr}
		opts.Username = parsed.Username
		opts.Password = parsed.Password
		opts.DB = parsed.DB
		opts.TLSConfig = parsed.TLSConfig
	}
	if len(opts.Addrs) == 0 {
		return nil, ErrNotConfigured
	}
	return opts, nil
}

// Connect opens a client for cfg's topology and pings it.
func Connect(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := goredis.NewUniversalClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
