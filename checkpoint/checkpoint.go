// Package checkpoint defines the State Store contract (spec §5): durable
// AgentState snapshots keyed by thread_id (conversation_id), plus a
// secondary TTL'd keyspace for ephemeral per-task scratch data. Concrete
// backends live in checkpoint/inmem (tests, single-process demos) and
// checkpoint/redis (production, using go-redis/v9's native key TTL).
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/planexec/planexec/model"
)

// ErrNotFound is returned by Store.Load and Store.LoadTaskState when the
// requested key has no snapshot.
var ErrNotFound = errors.New("checkpoint: not found")

// Store is the State Store contract every backend implements.
type Store interface {
	// Save durably persists state under its ConversationID, overwriting any
	// prior snapshot (spec §5: "thread:{thread_id}" keyspace).
	Save(ctx context.Context, state *model.AgentState) error

	// Load returns the most recently saved AgentState for threadID, or
	// ErrNotFound if none exists.
	Load(ctx context.Context, threadID string) (*model.AgentState, error)

	// Delete removes any snapshot for threadID. It is not an error to
	// delete an absent thread.
	Delete(ctx context.Context, threadID string) error

	// SaveTaskState persists ephemeral scratch data under taskID with a
	// time-to-live (spec §5: "task_state:{task_id}" keyspace, default TTL
	// 3600s). Backends must expire the entry no later than ttl after Save.
	SaveTaskState(ctx context.Context, taskID string, data map[string]any, ttl time.Duration) error

	// LoadTaskState returns the scratch data saved under taskID, or
	// ErrNotFound if absent or expired.
	LoadTaskState(ctx context.Context, taskID string) (map[string]any, error)
}
