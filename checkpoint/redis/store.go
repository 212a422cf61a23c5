// Package redis implements checkpoint.Store on top of go-redis/v9, using
// Redis's native key TTL for the task_state:{task_id} keyspace instead of
// hand-rolled expiry bookkeeping (spec §5).
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/planexec/planexec/checkpoint"
	"github.com/planexec/planexec/model"
)

const (
	threadKeyPrefix = "thread:"
	taskKeyPrefix   = "task_state:"
)

// Store is a checkpoint.Store backed by a Redis client.
type Store struct {
	client goredis.UniversalClient
}

// New wraps an existing Redis client. client may be a *goredis.Client or any
// other goredis.UniversalClient implementation (cluster, failover).
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

var _ checkpoint.Store = (*Store)(nil)

func (s *Store) Save(ctx context.Context, state *model.AgentState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, threadKeyPrefix+state.ConversationID, payload, 0).Err()
}

func (s *Store) Load(ctx context.Context, threadID string) (*model.AgentState, error) {
	raw, err := s.client.Get(ctx, threadKeyPrefix+threadID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, checkpoint.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var state model.AgentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) Delete(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, threadKeyPrefix+threadID).Err()
}

func (s *Store) SaveTaskState(ctx context.Context, taskID string, data map[string]any, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, taskKeyPrefix+taskID, payload, ttl).Err()
}

func (s *Store) LoadTaskState(ctx context.Context, taskID string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, checkpoint.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
