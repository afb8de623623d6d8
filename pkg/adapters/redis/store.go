package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "waypoint:"

// farFuture is the index score of records that never expire.
const farFuture = 4102444800 // 2100-01-01

// Store implements ports.ProgressStore and ports.CompletionRecorder using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of progress records. Completion flags never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + "progress:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "progress:index"
}

func (s *Store) completedKey(userID, tourID string) string {
	return s.prefix + "completed:" + tourID + ":" + userID
}

// Save persists the progress record and indexes the session.
func (s *Store) Save(ctx context.Context, sessionID string, progress *domain.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)

	// Score = expiry, so List can prune lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: sessionID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the progress record of a session.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

// Delete removes the progress record.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns sessions with saved progress, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// MarkCompleted sets the completion flag of userID for tourID.
func (s *Store) MarkCompleted(ctx context.Context, userID, tourID string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := s.client.Set(ctx, s.completedKey(userID, tourID), stamp, 0).Err(); err != nil {
		return fmt.Errorf("failed to mark completion: %w", err)
	}
	return nil
}

// IsCompleted reports whether the completion flag is set.
func (s *Store) IsCompleted(ctx context.Context, userID, tourID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.completedKey(userID, tourID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read completion: %w", err)
	}
	return n > 0, nil
}

// Reset clears the completion flag.
func (s *Store) Reset(ctx context.Context, userID, tourID string) error {
	return s.client.Del(ctx, s.completedKey(userID, tourID)).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
