// Package inmem implements engine.Engine as a direct in-process loop over
// the Supervisor/Planner/Executor/Validator nodes, checkpointing through a
// checkpoint.Store and publishing a stream.Event after every node
// invocation. It is the default Workflow Engine backend; engine/temporal
// provides a durable, replay-safe alternative for the same node set,
// following the teacher's runtime/agent/engine/inmem adapter.
package inmem

import (
	"context"
	"time"

	"github.com/planexec/planexec/checkpoint"
	"github.com/planexec/planexec/engine"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/stream"
	"github.com/planexec/planexec/supervisor"
	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/workflowerrors"
)

// maxIterationsPerStep is the per-step share of the Supervisor loop bound:
// run allows (len(TodoList)+MAX_TASK_STEPS) times this many iterations, so a
// misbehaving node (one that never resolves a step) cannot spin the engine
// forever. Each share covers MAX_RETRY_COUNT executor attempts plus one.
const maxIterationsPerStep = model.MaxRetryCount + 1

// Engine is the in-process Workflow Engine.
type Engine struct {
	nodes   engine.Nodes
	store   checkpoint.Store
	disp    *stream.Dispatcher
	logger  telemetry.Logger
	tracer  telemetry.Tracer
	now     func() time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the Engine's logger.
func WithLogger(l telemetry.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracer sets the Engine's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// New constructs an Engine from its node set, checkpoint store and stream
// dispatcher.
func New(nodes engine.Nodes, store checkpoint.Store, disp *stream.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		nodes:  nodes,
		store:  store,
		disp:   disp,
		logger: telemetry.NewNoopLogger(),
		tracer: telemetry.NewNoopTracer(),
		now:    time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) Start(ctx context.Context, threadID, userInput, userID string) (*model.AgentState, error) {
	state := model.NewAgentState(userInput, threadID, userID, e.now())
	e.publish(ctx, stream.Event{Type: stream.EventTaskCreated, ConversationID: threadID, State: state.Clone()})
	return e.run(ctx, state)
}

func (e *Engine) Resume(ctx context.Context, threadID string, userProvidedConfig map[string]any) (*model.AgentState, error) {
	state, err := e.store.Load(ctx, threadID)
	if err != nil {
		return nil, workflowerrors.Wrap(workflowerrors.KindThreadNotFound, "no checkpoint for thread "+threadID, err)
	}
	if state.PendingUserInput == nil {
		return nil, workflowerrors.Newf(workflowerrors.KindValidationFailed, "thread %s is not suspended", threadID)
	}
	merged := make(map[string]any, len(state.UserProvidedConfig)+len(userProvidedConfig))
	for k, v := range state.UserProvidedConfig {
		merged[k] = v
	}
	for k, v := range userProvidedConfig {
		merged[k] = v
	}
	state.UserProvidedConfig = merged
	state.PendingUserInput = nil
	e.publish(ctx, stream.Event{Type: stream.EventTaskResumed, ConversationID: threadID, State: state.Clone()})
	return e.run(ctx, state)
}

func (e *Engine) Get(ctx context.Context, threadID string) (*model.AgentState, error) {
	return e.store.Load(ctx, threadID)
}

// run drives the Supervisor loop until it routes to End, checkpointing and
// publishing a state_update after each node invocation.
func (e *Engine) run(ctx context.Context, state *model.AgentState) (*model.AgentState, error) {
	ctx, span := e.tracer.Start(ctx, "engine.run")
	defer span.End()

	maxIterations := (len(state.TodoList) + model.MaxTaskSteps) * maxIterationsPerStep
	if maxIterations == 0 {
		maxIterations = model.MaxTaskSteps * maxIterationsPerStep
	}

	for i := 0; i < maxIterations; i++ {
		next := supervisor.Route(state)
		if next == supervisor.NodeEnd {
			break
		}

		node := e.nodeFor(next)
		if node == nil {
			return nil, workflowerrors.Newf(workflowerrors.KindValidationFailed, "no node registered for %s", next)
		}
		if err := node.Run(ctx, state); err != nil {
			e.publish(ctx, stream.Event{Type: stream.EventTaskError, ConversationID: state.ConversationID, Error: err.Error()})
			return state, err
		}
		state.UpdatedAt = e.now()
		if err := e.store.Save(ctx, state); err != nil {
			return state, workflowerrors.Wrap(workflowerrors.KindValidationFailed, "failed to checkpoint state", err)
		}
		e.publish(ctx, stream.Event{Type: stream.EventStateUpdate, ConversationID: state.ConversationID, State: state.Clone()})

		if state.PendingUserInput != nil {
			break
		}
	}
	return state, nil
}

func (e *Engine) nodeFor(n supervisor.Node) engine.Node {
	switch n {
	case supervisor.NodePlanner:
		return e.nodes.Planner
	case supervisor.NodeExecutor:
		return e.nodes.Executor
	case supervisor.NodeValidator:
		return e.nodes.Validator
	default:
		return nil
	}
}

func (e *Engine) publish(ctx context.Context, ev stream.Event) {
	if e.disp == nil {
		return
	}
	e.disp.Publish(ctx, ev)
}
