// Package temporal adapts the same Planner/Executor/Validator node set onto
// a Temporal workflow (go.temporal.io/sdk), giving the engine a durable,
// replay-safe backend: Temporal's own event history takes over the
// checkpoint/resume responsibility that engine/inmem delegates to
// checkpoint.Store, while node invocations run as activities so a worker
// crash mid-step replays from Temporal's history instead of the in-memory
// loop. This mirrors the teacher's pluggable Engine abstraction, which
// supports exactly this in-memory-vs-Temporal split.
package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/planexec/planexec/engine"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/supervisor"
	"github.com/planexec/planexec/workflowerrors"
)

const (
	// TaskQueue is the default Temporal task queue workers poll and the
	// Engine schedules workflows onto.
	TaskQueue = "planexec-tasks"
	// WorkflowName is registered with Temporal's worker and used to start
	// new executions.
	WorkflowName = "PlanExecWorkflow"
)

// Activities bundles the node invocations as Temporal activity functions.
// Each wraps one of engine.Nodes so the same Planner/Executor/Validator
// implementations used by engine/inmem run here as Temporal activities.
type Activities struct {
	Nodes engine.Nodes
}

func (a *Activities) RunPlanner(ctx context.Context, state *model.AgentState) (*model.AgentState, error) {
	err := a.Nodes.Planner.Run(ctx, state)
	return state, err
}

func (a *Activities) RunExecutor(ctx context.Context, state *model.AgentState) (*model.AgentState, error) {
	err := a.Nodes.Executor.Run(ctx, state)
	return state, err
}

func (a *Activities) RunValidator(ctx context.Context, state *model.AgentState) (*model.AgentState, error) {
	err := a.Nodes.Validator.Run(ctx, state)
	return state, err
}

var defaultActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts: int32(model.MaxRetryCount),
	},
}

// Workflow is the Temporal workflow function registered under WorkflowName.
// It re-implements the Supervisor loop using workflow.ExecuteActivity in
// place of engine/inmem's direct node calls; Temporal's workflow history
// *is* the checkpoint, so there is no separate checkpoint.Store.Save call
// here.
func Workflow(ctx workflow.Context, state *model.AgentState) (*model.AgentState, error) {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions)
	var a *Activities

	if err := workflow.SetQueryHandler(ctx, StateQueryName, func() (*model.AgentState, error) {
		return state, nil
	}); err != nil {
		return state, err
	}

	for i := 0; i < model.MaxTaskSteps*(model.MaxRetryCount+1)+2; i++ {
		next := supervisor.Route(state)
		if next == supervisor.NodeEnd {
			break
		}

		var future workflow.Future
		switch next {
		case supervisor.NodePlanner:
			future = workflow.ExecuteActivity(ctx, a.RunPlanner, state)
		case supervisor.NodeExecutor:
			future = workflow.ExecuteActivity(ctx, a.RunExecutor, state)
		case supervisor.NodeValidator:
			future = workflow.ExecuteActivity(ctx, a.RunValidator, state)
		}
		if err := future.Get(ctx, &state); err != nil {
			return state, err
		}
		if state.PendingUserInput != nil {
			// Suspend: wait for a resume signal carrying user-provided
			// config before continuing the loop.
			var config map[string]any
			selector := workflow.NewSelector(ctx)
			signalCh := workflow.GetSignalChannel(ctx, ResumeSignalName)
			selector.AddReceive(signalCh, func(c workflow.ReceiveChannel, more bool) {
				c.Receive(ctx, &config)
			})
			selector.Select(ctx)
			merged := make(map[string]any, len(state.UserProvidedConfig)+len(config))
			for k, v := range state.UserProvidedConfig {
				merged[k] = v
			}
			for k, v := range config {
				merged[k] = v
			}
			state.UserProvidedConfig = merged
			state.PendingUserInput = nil
		}
	}
	return state, nil
}

// ResumeSignalName is the Temporal signal name used to deliver
// user-provided configuration to a suspended workflow.
const ResumeSignalName = "resume_with_user_config"

// StateQueryName is the Temporal query name used to read the current
// AgentState snapshot from a running workflow without waiting for it to
// complete.
const StateQueryName = "get_state"

// RegisterWorker registers Workflow and act's activities on w.
func RegisterWorker(w worker.Worker, act *Activities) {
	w.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	w.RegisterActivity(act.RunPlanner)
	w.RegisterActivity(act.RunExecutor)
	w.RegisterActivity(act.RunValidator)
}

// Engine implements engine.Engine by starting/signaling Temporal workflow
// executions, one per thread_id.
type Engine struct {
	client client.Client
	queue  string
}

// New constructs an Engine bound to a Temporal client.
func New(c client.Client) *Engine {
	return &Engine{client: c, queue: TaskQueue}
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) Start(ctx context.Context, threadID, userInput, userID string) (*model.AgentState, error) {
	initial := model.NewAgentState(userInput, threadID, userID, time.Now())
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "planexec-" + threadID,
		TaskQueue: e.queue,
	}, Workflow, initial)
	if err != nil {
		return nil, workflowerrors.Wrap(workflowerrors.KindValidationFailed, "failed to start temporal workflow", err)
	}
	var result model.AgentState
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) Resume(ctx context.Context, threadID string, userProvidedConfig map[string]any) (*model.AgentState, error) {
	workflowID := "planexec-" + threadID
	if err := e.client.SignalWorkflow(ctx, workflowID, "", ResumeSignalName, userProvidedConfig); err != nil {
		return nil, workflowerrors.Wrap(workflowerrors.KindThreadNotFound, "failed to signal workflow for thread "+threadID, err)
	}
	run := e.client.GetWorkflow(ctx, workflowID, "")
	var result model.AgentState
	if err := run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) Get(ctx context.Context, threadID string) (*model.AgentState, error) {
	resp, err := e.client.QueryWorkflow(ctx, "planexec-"+threadID, "", StateQueryName)
	if err != nil {
		return nil, workflowerrors.Wrap(workflowerrors.KindThreadNotFound, "failed to query workflow for thread "+threadID, err)
	}
	var result model.AgentState
	if err := resp.Get(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
