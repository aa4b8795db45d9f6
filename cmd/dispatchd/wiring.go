package main

import (
	"fmt"

	"github.com/activepieces/activepieces-sub025/internal/config"
	"github.com/activepieces/activepieces-sub025/pkg/adapters/memory"
	natsadapter "github.com/activepieces/activepieces-sub025/pkg/adapters/nats"
	redisadapter "github.com/activepieces/activepieces-sub025/pkg/adapters/redis"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

func newRedisClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// newBus picks the response channel transport. The memory bus only
// works single-process; it exists for local development.
func newBus(cfg *config.Config, client *backend.Client) (ports.MessageBus, error) {
	switch cfg.Bus {
	case "redis":
		return redisadapter.NewBus(client), nil
	case "nats":
		return natsadapter.Connect(cfg.NATSURL)
	case "memory":
		return memory.NewBus(), nil
	default:
		return nil, fmt.Errorf("unknown bus %q (want redis, nats or memory)", cfg.Bus)
	}
}
