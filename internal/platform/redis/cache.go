// Package redis provides a Redis-backed cache for meeting comparisons.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL is used when the configured TTL is zero.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "cadence:comparison:"

// ComparisonCache stores comparisons as JSON under one key per meeting.
type ComparisonCache struct {
	client goredis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// Connect parses redisURL, opens a client and checks it with a ping.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewComparisonCache creates a cache on top of client.
func NewComparisonCache(client goredis.Cmdable, ttl time.Duration, logger *slog.Logger) *ComparisonCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ComparisonCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "comparison_cache")),
	}
}

func key(meetingID uuid.UUID) string {
	return keyPrefix + meetingID.String()
}

// Get returns the cached comparison for meetingID. A missing key is a miss,
// not an error.
func (c *ComparisonCache) Get(ctx context.Context, meetingID uuid.UUID) (*lifecycle.Comparison, bool, error) {
	raw, err := c.client.Get(ctx, key(meetingID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read comparison: %w", err)
	}

	var comparison lifecycle.Comparison
	if err := json.Unmarshal(raw, &comparison); err != nil {
		// A stale encoding is treated as a miss and overwritten on the next Set.
		logger.FromContextOrDefault(ctx, c.logger).Warn("discarding undecodable comparison",
			slog.String("meeting_id", meetingID.String()))
		return nil, false, nil
	}
	return &comparison, true, nil
}

// Set stores the comparison for meetingID with the configured TTL.
func (c *ComparisonCache) Set(ctx context.Context, meetingID uuid.UUID, comparison *lifecycle.Comparison) error {
	raw, err := json.Marshal(comparison)
	if err != nil {
		return fmt.Errorf("failed to encode comparison: %w", err)
	}
	if err := c.client.Set(ctx, key(meetingID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}
	return nil
}

// Invalidate deletes the comparisons of the given meetings.
func (c *ComparisonCache) Invalidate(ctx context.Context, meetingIDs ...uuid.UUID) error {
	if len(meetingIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meetingIDs))
	for _, id := range meetingIDs {
		keys = append(keys, key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate comparisons: %w", err)
	}
	return nil
}
