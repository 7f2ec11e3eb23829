// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"querydesk/internal/models"
)

const (
	flowKeyPrefix         = "session:flow:"
	conversationKeyPrefix = "session:conversation:"
	conversationMax       = 100
	conversationTTL       = 24 * time.Hour
)

// RedisStore persists question flows in redis with a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*QuestionFlow, error) {
	raw, err := s.client.Get(ctx, flowKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}

	var flow QuestionFlow
	if err := json.Unmarshal([]byte(raw), &flow); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return &flow, nil
}

func (s *RedisStore) Put(ctx context.Context, userID string, flow *QuestionFlow) error {
	raw, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("encode flow: %w", err)
	}
	if err := s.client.Set(ctx, flowKeyPrefix+userID, raw, FlowTTL).Err(); err != nil {
		return fmt.Errorf("put flow: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, flowKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear flow: %w", err)
	}
	return nil
}

// RedisConversationStore keeps message history in a capped redis list.
type RedisConversationStore struct {
	client *redis.Client
}

func NewRedisConversationStore(client *redis.Client) *RedisConversationStore {
	return &RedisConversationStore{client: client}
}

func (s *RedisConversationStore) Append(ctx context.Context, userID, role, content string) error {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	key := conversationKeyPrefix + userID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -conversationMax, -1)
	pipe.Expire(ctx, key, conversationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *RedisConversationStore) History(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = conversationMax
	}
	key := conversationKeyPrefix + userID
	raw, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	messages := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
