// Package inmem implements repository.ConversationRepository and
// repository.TaskRepository in process-local maps, following the teacher's
// session/inmem store pattern (sync.RWMutex, deep-copy on read/write).
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/planexec/planexec/repository"
)

// Repository implements both repository.ConversationRepository and
// repository.TaskRepository in memory.
type Repository struct {
	mu            sync.RWMutex
	conversations map[string]repository.Conversation
	tasks         map[string]repository.TaskRecord
	messages      map[string][]repository.Message
}

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		conversations: make(map[string]repository.Conversation),
		tasks:         make(map[string]repository.TaskRecord),
		messages:      make(map[string][]repository.Message),
	}
}

var (
	_ repository.ConversationRepository = (*Repository)(nil)
	_ repository.TaskRepository         = (*Repository)(nil)
)

func (r *Repository) Create(_ context.Context, conv repository.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conversations[conv.ID]; ok && existing.Status == repository.ConversationActive {
		return nil
	}
	r.conversations[conv.ID] = conv
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (repository.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return repository.Conversation{}, repository.ErrConversationNotFound
	}
	return conv, nil
}

func (r *Repository) End(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return repository.ErrConversationNotFound
	}
	conv.Status = repository.ConversationEnded
	r.conversations[id] = conv
	return nil
}

func (r *Repository) CreateTask(_ context.Context, task repository.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task
	return nil
}

func (r *Repository) CompleteTask(_ context.Context, id string, finalStatus string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	task.FinalStatus = finalStatus
	ts := completedAt
	task.CompletedAt = &ts
	r.tasks[id] = task
	return nil
}

func (r *Repository) GetTask(_ context.Context, id string) (repository.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return repository.TaskRecord{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (r *Repository) ListTasksByConversation(_ context.Context, conversationID string) ([]repository.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []repository.TaskRecord
	for _, t := range r.tasks {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Repository) AppendMessage(_ context.Context, msg repository.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg)
	return nil
}

func (r *Repository) ListMessages(_ context.Context, conversationID string) ([]repository.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]repository.Message, len(r.messages[conversationID]))
	copy(out, r.messages[conversationID])
	return out, nil
}
