// Package inmem implements checkpoint.Store in a process-local map,
// following the teacher's runtime/agent/session/inmem store: a
// sync.RWMutex-guarded map plus deep-copy-on-read/write so callers can never
// mutate the store's internal state through a returned pointer.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/planexec/planexec/checkpoint"
	"github.com/planexec/planexec/model"
)

type taskStateEntry struct {
	data     map[string]any
	expireAt time.Time
}

// Store is an in-memory checkpoint.Store. The zero value is not usable;
// construct with New.
type Store struct {
	mu         sync.RWMutex
	threads    map[string]*model.AgentState
	taskStates map[string]taskStateEntry
	now        func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		threads:    make(map[string]*model.AgentState),
		taskStates: make(map[string]taskStateEntry),
		now:        time.Now,
	}
}

var _ checkpoint.Store = (*Store)(nil)

func (s *Store) Save(_ context.Context, state *model.AgentState) error {
	snapshot := state.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[snapshot.ConversationID] = snapshot
	return nil
}

func (s *Store) Load(_ context.Context, threadID string) (*model.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.threads[threadID]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	return state.Clone(), nil
}

func (s *Store) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *Store) SaveTaskState(_ context.Context, taskID string, data map[string]any, ttl time.Duration) error {
	clone := make(map[string]any, len(data))
	for k, v := range data {
		clone[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStates[taskID] = taskStateEntry{data: clone, expireAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) LoadTaskState(_ context.Context, taskID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.taskStates[taskID]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	if s.now().After(entry.expireAt) {
		delete(s.taskStates, taskID)
		return nil, checkpoint.ErrNotFound
	}
	out := make(map[string]any, len(entry.data))
	for k, v := range entry.data {
		out[k] = v
	}
	return out, nil
}
