package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSinkConfig configures a RedisSink.
type RedisSinkConfig struct {
	KeyPrefix string
	// MaxEntries trims every list to this many newest records.
	MaxEntries int64
	// CloseClient closes the client when the sink is closed.
	CloseClient bool
}

// RedisSink keeps capped lists of recent records: one global and one per actor.
type RedisSink struct {
	client      redis.UniversalClient
	prefix      string
	maxEntries  int64
	closeClient bool
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.UniversalClient, cfg RedisSinkConfig) *RedisSink {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "agentguard:audit"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &RedisSink{
		client:      client,
		prefix:      cfg.KeyPrefix,
		maxEntries:  cfg.MaxEntries,
		closeClient: cfg.CloseClient,
	}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) recordsKey() string {
	return s.prefix + ":records"
}

func (s *RedisSink) actorKey(actor string) string {
	return s.prefix + ":actor:" + actor
}

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.recordsKey(), data)
	pipe.LTrim(ctx, s.recordsKey(), 0, s.maxEntries-1)
	if r.ActorKey != "" {
		pipe.LPush(ctx, s.actorKey(r.ActorKey), data)
		pipe.LTrim(ctx, s.actorKey(r.ActorKey), 0, s.maxEntries-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis audit write: %w", err)
	}
	return nil
}

// Recent returns up to n newest records, for one actor when actor is non-empty.
func (s *RedisSink) Recent(ctx context.Context, actor string, n int64) ([]*Record, error) {
	if n <= 0 {
		n = DefaultMaxResults
	}
	key := s.recordsKey()
	if actor != "" {
		key = s.actorKey(actor)
	}

	items, err := s.client.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis audit read: %w", err)
	}

	out := make([]*Record, 0, len(items))
	for _, item := range items {
		var r Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode audit record: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}

// Close implements Sink.
func (s *RedisSink) Close() error {
	if s.closeClient {
		return s.client.Close()
	}
	return nil
}
