package lock

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Enabled       bool          `envconfig:"LOCK_ENABLED" default:"false"`
	Prefix        string        `envconfig:"LOCK_PREFIX" default:"autotrader:"`
	TTL           time.Duration `envconfig:"LOCK_TTL" default:"2m"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process lock config: %w", err)
	}
	return cfg, nil
}

// New returns a Redis lease when enabled, otherwise a NopLock.
func New(cfg Config) DistributedLock {
	if !cfg.Enabled {
		return NewNopLock()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	return NewRedisLock(client, cfg.Prefix)
}
