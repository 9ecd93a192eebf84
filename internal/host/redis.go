package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Keys and channels below the configured prefix. Channel names share
	// the key prefix so Redis ACL rules apply consistently to both.
	varsKey         = "ontime:vars"
	statusKey       = "ontime:status"
	varsChannel     = "ontime:vars"
	statusChannel   = "ontime:status"
	feedbackChannel = "ontime:feedbacks"

	writeTimeout = 5 * time.Second
)

// statusEvent is the JSON document stored at statusKey and published on
// statusChannel.
type statusEvent struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RedisSink publishes bridge state into Redis: variables live in a hash,
// and change notifications go out on pub/sub channels so control surfaces
// can react without polling.
type RedisSink struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSink connects to Redis and verifies the connection with a ping.
func NewRedisSink(redisURL, keyPrefix string) (*RedisSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisSink{client: client, keyPrefix: keyPrefix}, nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// Ping reports whether the Redis connection is healthy. Used by readiness
// checks.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) prefixed(name string) string {
	if s.keyPrefix == "" {
		return name
	}
	return s.keyPrefix + name
}

// UpdateStatus stores the status document and notifies subscribers.
// Failures are logged but never surfaced: the sink contract is
// fire-and-forget.
func (s *RedisSink) UpdateStatus(status Status, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	data, err := json.Marshal(statusEvent{Status: status, Detail: detail})
	if err != nil {
		// statusEvent cannot actually fail to marshal; keep the guard anyway.
		return
	}

	if err := s.client.Set(ctx, s.prefixed(statusKey), data, 0).Err(); err != nil {
		slog.Error("host.redis.status_write_failed",
			"component", "host",
			"event", "sink.status_error",
			"status", status,
			"error", err,
		)
		return
	}
	if err := s.client.Publish(ctx, s.prefixed(statusChannel), data).Err(); err != nil {
		slog.Error("host.redis.status_publish_failed",
			"component", "host",
			"event", "sink.status_error",
			"status", status,
			"error", err,
		)
	}
}

// SetVariableValues writes the variables into the hash and publishes the
// list of changed names so subscribers can fetch selectively.
func (s *RedisSink) SetVariableValues(values map[string]string) {
	if len(values) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	fields := make([]any, 0, len(values)*2)
	names := make([]string, 0, len(values))
	for name, value := range values {
		fields = append(fields, name, value)
		names = append(names, name)
	}

	if err := s.client.HSet(ctx, s.prefixed(varsKey), fields...).Err(); err != nil {
		slog.Error("host.redis.vars_write_failed",
			"component", "host",
			"event", "sink.vars_error",
			"count", len(values),
			"error", err,
		)
		return
	}

	data, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.prefixed(varsChannel), data).Err(); err != nil {
		slog.Error("host.redis.vars_publish_failed",
			"component", "host",
			"event", "sink.vars_error",
			"error", err,
		)
	}
}

// CheckFeedbacks publishes the feedback names that need re-evaluation.
func (s *RedisSink) CheckFeedbacks(names ...string) {
	if len(names) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	data, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.prefixed(feedbackChannel), data).Err(); err != nil {
		slog.Error("host.redis.feedback_publish_failed",
			"component", "host",
			"event", "sink.feedback_error",
			"error", err,
		)
	}
}
