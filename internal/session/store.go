// Package session keeps generator conversations in redis. Sessions expire
// after a period of inactivity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assistdeck/internal/assistant"
	"assistdeck/internal/providers"
)

var ErrSessionNotFound = errors.New("generator session not found")

type Session struct {
	ID        string               `json:"id"`
	Turns     []providers.Turn     `json:"turns"`
	Draft     assistant.Definition `json:"draft"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type Store struct {
	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: rdb, ttl: ttl, lockTTL: 5 * time.Minute}
}

func (s *Store) key(id string) string {
	return "assistdeck:generator:" + id
}

func (s *Store) lockKey(id string) string {
	return "assistdeck:generator:" + id + ":busy"
}

// Put writes the session and restarts its TTL.
func (s *Store) Put(ctx context.Context, sess Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sess.ID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, s.key(id), s.lockKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Acquire marks the session busy while a message is in flight. It reports
// false when another send already holds it.
func (s *Store) Acquire(ctx context.Context, id string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.lockKey(id), "1", s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire session: %w", err)
	}
	return ok, nil
}

func (s *Store) Release(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.lockKey(id)).Err(); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}
