package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// HistoryCache keeps the recent message window in Redis so completion
// context does not hit the durable store on every message. All methods
// are safe on a nil receiver; the cache is optional.
type HistoryCache struct {
	redis  *redis.Client
	tracer trace.Tracer
	limit  int
}

// NewHistoryCache creates the cache bounded to limit messages per session.
func NewHistoryCache(client *redis.Client, limit int) *HistoryCache {
	if client == nil {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	return &HistoryCache{
		redis:  client,
		tracer: otel.Tracer("chatbot.internal.conversation.history"),
		limit:  limit,
	}
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}

// Append pushes a message onto the session window and trims it.
func (c *HistoryCache) Append(ctx context.Context, msg Message) error {
	if c == nil {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "conversation.cache_append")
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal cached message: %w", err)
	}

	key := historyKey(msg.SessionID)
	pipe := c.redis.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-c.limit), -1)
	pipe.Expire(ctx, key, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to cache message: %w", err)
	}
	return nil
}

// Recent returns up to limit cached messages, oldest first. A cold cache
// returns an empty slice and no error.
func (c *HistoryCache) Recent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if c == nil {
		return nil, nil
	}
	ctx, span := c.tracer.Start(ctx, "conversation.cache_recent")
	defer span.End()

	if limit <= 0 || limit > c.limit {
		limit = c.limit
	}

	raw, err := c.redis.LRange(ctx, historyKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to read cached history: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
