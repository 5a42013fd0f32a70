package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisChannel = "kami:events"
	agentsGeoKey        = "kami:agents:geo"
	lastPositionTTL     = 10 * time.Minute

	// GEOADD rejects latitudes beyond the Web Mercator limit.
	maxGeoLatitude = 85.05112878
)

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// RedisMirror republishes events on a redis channel so other processes can
// follow the live feed, and keeps the last known agent positions in a geo set.
type RedisMirror struct {
	client  *redis.Client
	channel string
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func NewRedisMirror(client *redis.Client, channel string) *RedisMirror {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisMirror{client: client, channel: channel}
}

func (r *RedisMirror) Name() string {
	return "redis"
}

func (r *RedisMirror) Handle(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := r.client.Pipeline()

	if pos, ok := evt.Data.(events.PositionUpdate); ok {
		lastKey := fmt.Sprintf("kami:agent:%s:last", pos.AgentID)
		if math.Abs(pos.Lat) <= maxGeoLatitude {
			pipe.GeoAdd(ctx, agentsGeoKey, &redis.GeoLocation{
				Name:      pos.AgentID,
				Longitude: pos.Lon,
				Latitude:  pos.Lat,
			})
		} else {
			// drop the old point rather than leave a stale one behind
			pipe.ZRem(ctx, agentsGeoKey, pos.AgentID)
		}
		pipe.HSet(ctx, lastKey, map[string]interface{}{
			"agent_id":  pos.AgentID,
			"name":      pos.Name,
			"lat":       pos.Lat,
			"lng":       pos.Lon,
			"timestamp": pos.CapturedAt.Unix(),
		})
		pipe.Expire(ctx, lastKey, lastPositionTTL)
	}

	if !evt.IsDirect() {
		pipe.Publish(ctx, r.channel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror event to redis: %w", err)
	}
	return nil
}
