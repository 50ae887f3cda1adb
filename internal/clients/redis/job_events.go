package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// JobEvent is the message fanned out when a job changes state.
type JobEvent struct {
	Event string         `json:"event"`
	JobID string         `json:"job_id"`
	Data  map[string]any `json:"data,omitempty"`
}

type JobEventBus interface {
	Publish(ctx context.Context, ev JobEvent) error
	Subscribe(ctx context.Context, onEvent func(ev JobEvent)) error
}

type jobEventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewJobEventBus(rdb *goredis.Client, channel string, baseLog *logger.Logger) (JobEventBus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ch := strings.TrimSpace(channel)
	if ch == "" {
		ch = "obe:jobs"
	}
	return &jobEventBus{
		log:     baseLog.With("service", "RedisJobEventBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *jobEventBus) Publish(ctx context.Context, ev JobEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *jobEventBus) Subscribe(ctx context.Context, onEvent func(ev JobEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev JobEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis job event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}
