package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/toanlq204/IT-helpdesk-bot/internal/storage"
	"github.com/toanlq204/IT-helpdesk-bot/pkg/logger"
)

// RedisStore persists conversations as JSON blobs so history survives
// process restarts and can be shared across replicas.
type RedisStore struct {
	client          *redis.Client
	locks           *keyedMutex
	maxTurns        int
	maxContextChars int
}

type conversationDoc struct {
	ConversationID string    `json:"conversation_id"`
	Turns          []Turn    `json:"turns"`
	LastUpdated    time.Time `json:"last_updated"`
}

func NewRedisStore(host string, port int, password string, db, maxTurns, maxContextChars int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis conversation store initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
	)

	return &RedisStore{
		client:          client,
		locks:           newKeyedMutex(),
		maxTurns:        maxTurns,
		maxContextChars: maxContextChars,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

func (s *RedisStore) Append(ctx context.Context, conversationID, role, content string) error {
	unlock := s.locks.lock(conversationID)
	defer unlock()

	turns, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}

	turns = append(turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	turns = trimTurns(turns, s.maxTurns, s.maxContextChars)

	doc := conversationDoc{
		ConversationID: conversationID,
		Turns:          turns,
		LastUpdated:    time.Now(),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := s.client.Set(ctx, conversationKey(conversationID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: failed to save conversation: %v", storage.ErrUnavailable, err)
	}

	logger.Debug("Conversation saved",
		zap.String("conversation_id", conversationID),
		zap.Int("turns", len(turns)),
	)
	return nil
}

func (s *RedisStore) Read(ctx context.Context, conversationID string) ([]Turn, error) {
	return s.load(ctx, conversationID)
}

func (s *RedisStore) Clear(ctx context.Context, conversationID string) (bool, error) {
	if err := s.client.Del(ctx, conversationKey(conversationID)).Err(); err != nil {
		return false, fmt.Errorf("%w: failed to clear conversation: %v", storage.ErrUnavailable, err)
	}
	return true, nil
}

func (s *RedisStore) Stats(ctx context.Context, conversationID string) (Stats, error) {
	turns, err := s.load(ctx, conversationID)
	if err != nil {
		return Stats{}, err
	}
	return statsFor(turns), nil
}

func (s *RedisStore) load(ctx context.Context, conversationID string) ([]Turn, error) {
	data, err := s.client.Get(ctx, conversationKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load conversation: %v", storage.ErrUnavailable, err)
	}

	var doc conversationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}

	return doc.Turns, nil
}
