// Package repository defines the durable conversation/task/message records
// the workflow exposes to API clients (spec §5), independent of the
// checkpointed AgentState used for crash recovery. The split mirrors the
// teacher's session.Store contract (Session/RunMeta, sentinel not-found
// errors, idempotent creation) adapted to this domain's Conversation/Task
// vocabulary.
package repository

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by every backend, mirroring the teacher's
// ErrSessionNotFound/ErrSessionEnded/ErrRunNotFound convention.
var (
	ErrConversationNotFound = errors.New("repository: conversation not found")
	ErrTaskNotFound         = errors.New("repository: task not found")
)

// ConversationStatus is the lifecycle state of a Conversation record.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationEnded   ConversationStatus = "ended"
)

// Conversation is the durable record of one thread_id's lifecycle.
type Conversation struct {
	ID        string
	UserID    string
	Status    ConversationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskRecord is the durable record of one workflow run within a conversation.
type TaskRecord struct {
	ID             string
	ConversationID string
	UserInput      string
	FinalStatus    string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Message is one turn of the human-readable conversation transcript
// (distinct from the structured AgentState, and from chatgen.Message which
// is a model-facing wire shape).
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ConversationRepository persists Conversation records.
type ConversationRepository interface {
	// Create is idempotent for an already-active conversation with the same
	// ID: calling it twice for the same still-active conversation returns
	// no error and does not reset CreatedAt.
	Create(ctx context.Context, conv Conversation) error
	Get(ctx context.Context, id string) (Conversation, error)
	End(ctx context.Context, id string) error
}

// TaskRepository persists TaskRecord records and the messages exchanged
// during them.
type TaskRepository interface {
	CreateTask(ctx context.Context, task TaskRecord) error
	CompleteTask(ctx context.Context, id string, finalStatus string, completedAt time.Time) error
	GetTask(ctx context.Context, id string) (TaskRecord, error)
	ListTasksByConversation(ctx context.Context, conversationID string) ([]TaskRecord, error)

	AppendMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}
