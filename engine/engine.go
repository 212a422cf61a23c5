// Package engine defines the pluggable Workflow Engine contract (spec §3/§5):
// drive the Supervisor/Planner/Executor/Validator loop over an AgentState,
// checkpointing after every node invocation so a crash can resume exactly
// where it left off. engine/inmem is the default single-process
// implementation; engine/temporal adapts the same node set onto a Temporal
// workflow for durable, replay-safe execution, mirroring the teacher's
// runtime/agent/engine abstraction (a small Engine interface with an
// in-memory default and a Temporal-backed alternative).
package engine

import (
	"context"

	"github.com/planexec/planexec/model"
)

// Node is satisfied by planner.Node, executor.Node and validator.Node: the
// one method the engine's loop needs to advance a state by one step.
type Node interface {
	Run(ctx context.Context, state *model.AgentState) error
}

// Nodes bundles the three workflow nodes the engine dispatches to by
// supervisor.Node name.
type Nodes struct {
	Planner   Node
	Executor  Node
	Validator Node
}

// Engine is the contract every backend (inmem, temporal) implements.
type Engine interface {
	// Start begins a new workflow for threadID, running nodes until the
	// Supervisor routes to End (completion, terminal failure, or
	// suspension for user input), and returns the resulting snapshot.
	Start(ctx context.Context, threadID, userInput, userID string) (*model.AgentState, error)

	// Resume continues a suspended workflow after a human has supplied
	// userProvidedConfig, re-entering the loop from the checkpointed state.
	Resume(ctx context.Context, threadID string, userProvidedConfig map[string]any) (*model.AgentState, error)

	// Get returns the current checkpointed snapshot for threadID.
	Get(ctx context.Context, threadID string) (*model.AgentState, error)
}
