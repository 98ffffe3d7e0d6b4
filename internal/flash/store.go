// Package flash implements one-time messages: a message survives exactly one
// read, mirroring redirect-with-flash semantics from session-backed web
// frameworks.
package flash

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "flash:"

// Message is a single one-time notification.
type Message struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// Success builds a success-severity message.
func Success(text string) Message {
	return Message{Severity: "success", Text: text}
}

// Store persists pending flash messages keyed by caller identity.
type Store interface {
	Put(ctx context.Context, key string, msg Message) error
	// Take returns and removes the pending message, or nil when none exists.
	Take(ctx context.Context, key string) (*Message, error)
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a Redis-backed store. Messages not consumed within
// ttl expire on their own.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Put(ctx context.Context, key string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, payload, s.ttl).Err()
}

func (s *redisStore) Take(ctx context.Context, key string) (*Message, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type memoryStore struct {
	mu       sync.Mutex
	messages map[string]Message
}

// NewMemoryStore returns an in-process store, used when Redis is not
// configured and in tests.
func NewMemoryStore() Store {
	return &memoryStore{messages: make(map[string]Message)}
}

func (s *memoryStore) Put(_ context.Context, key string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[key] = msg
	return nil
}

func (s *memoryStore) Take(_ context.Context, key string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[key]
	if !ok {
		return nil, nil
	}
	delete(s.messages, key)
	return &msg, nil
}
