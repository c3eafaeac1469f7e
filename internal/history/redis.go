package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liurenke/renkebot/internal/apperr"
)

// RedisStore keeps each session history as a Redis list of JSON-encoded
// messages. Appends push onto the list and reset the key TTL in one
// transaction, giving the sliding-expiry lifecycle; Redis expiry is the
// only deletion path.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the resolved endpoint. The connection is
// verified by the engine bootstrap, not here.
func NewRedisStore(addr string, db int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return "chat:history:" + sessionID
}

func (s *RedisStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, apperr.StoreUnavailable(err, "redis read for session %s", sessionID)
	}
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode stored message for session %s: %w", sessionID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message for session %s: %w", sessionID, err)
		}
		values = append(values, data)
	}

	key := sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.StoreUnavailable(err, "redis append for session %s", sessionID)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return apperr.StoreUnavailable(err, "redis ping")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
