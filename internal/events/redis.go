package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
)

// channelPrefix namespaces per-user channels so a single pattern
// subscription can fan events out to websocket sessions.
const channelPrefix = "ws:"

// Channel returns the pub/sub channel for one user.
func Channel(userID string) string {
	return channelPrefix + userID
}

// ChannelPattern matches every per-user channel.
func ChannelPattern() string {
	return channelPrefix + "*"
}

// UserFromChannel extracts the user ID from a per-user channel name.
func UserFromChannel(channel string) string {
	if len(channel) <= len(channelPrefix) {
		return ""
	}
	return channel[len(channelPrefix):]
}

// Envelope is the wire form of one domain event.
type Envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// RedisSink publishes domain events to per-user Redis channels.
type RedisSink struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisSink connects to Redis and verifies connectivity before use.
func NewRedisSink(ctx context.Context, host string, port int, password string) (*RedisSink, error) {
	if host == "" {
		return nil, errors.New(errors.TypeConfig, "redis host missing")
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.TypeExternal, fmt.Sprintf("connect to redis at %s", addr))
	}

	logger := slog.Default().With("component", "events")
	logger.Info("redis sink connected", "addr", addr)
	return &RedisSink{client: client, logger: logger}, nil
}

// NewRedisSinkFromClient wraps an existing client. The caller keeps
// ownership of the client's lifecycle; used by tests.
func NewRedisSinkFromClient(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, logger: slog.Default().With("component", "events")}
}

var _ review.Sink = (*RedisSink)(nil)

// Publish sends one event to the user's channel. Nobody listening is
// fine; delivery is best effort and the store stays authoritative.
func (s *RedisSink) Publish(ctx context.Context, userID, event string, data map[string]interface{}) error {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return errors.InternalErrorf("marshal event %s: %v", event, err)
	}
	if err := s.client.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		return errors.Wrap(err, errors.TypeExternal, "publish event")
	}
	s.logger.Debug("event published", "event", event, "user_id", userID)
	return nil
}

// Subscribe opens a pattern subscription covering every user channel.
// The caller owns the returned PubSub and must Close it.
func (s *RedisSink) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.PSubscribe(ctx, ChannelPattern())
}

func (s *RedisSink) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.TypeExternal, "redis health check")
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
