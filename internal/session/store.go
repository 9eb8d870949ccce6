package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "attendify:session:"

// RedisStore keeps sessions in redis with a TTL bound to the session date.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, sess Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+sess.ID, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

func (s *RedisStore) Update(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+sess.ID, data, redis.KeepTTL).Err()
}

// MemoryStore is a map-backed store for dev and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	sess    Session
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = memoryEntry{sess: sess, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || s.now().After(e.expires) {
		delete(s.entries, id)
		return Session{}, false, nil
	}
	return e.sess, true, nil
}

func (s *MemoryStore) Update(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sess.ID]
	if !ok {
		return errors.New("session not found")
	}
	e.sess = sess
	s.entries[sess.ID] = e
	return nil
}
