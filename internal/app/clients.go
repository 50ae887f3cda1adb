package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/obe-backend/internal/clients/redis"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/temporalx"
)

type Clients struct {
	Redis     *goredis.Client
	JobEvents redis.JobEventBus
	// Locker serializes recomputes of one score key. It spans processes when
	// redis is configured.
	Locker   grading.KeyLocker
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Locker = redis.NewLocker(rdb, log)
		bus, err := redis.NewJobEventBus(rdb, cfg.Redis.Channel, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis job bus: %w", err)
		}
		out.JobEvents = bus
	} else {
		log.Info("REDIS_ADDR unset; using in-process score locks")
		out.Locker = grading.NewLocalLocker()
	}

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc
	return out, nil
}

func (c *Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
		c.Temporal = nil
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
		c.Redis = nil
	}
}
