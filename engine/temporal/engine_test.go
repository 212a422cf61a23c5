package temporal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/planexec/planexec/engine"
	planexectemporal "github.com/planexec/planexec/engine/temporal"
	"github.com/planexec/planexec/model"
)

// stubNode adapts a plain function to the engine.Node interface so tests
// don't need a real Planner/Executor/Validator to exercise the workflow's
// control flow.
type stubNode func(state *model.AgentState) error

func (f stubNode) Run(_ context.Context, state *model.AgentState) error { return f(state) }

func TestWorkflowReplaysDeterministicallyToSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	act := &planexectemporal.Activities{Nodes: engine.Nodes{
		Planner: stubNode(func(s *model.AgentState) error {
			s.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
			return nil
		}),
		Executor: stubNode(func(s *model.AgentState) error {
			s.TodoList[0].Status = model.StepCompleted
			s.CurrentStepIndex = 1
			return nil
		}),
		Validator: stubNode(func(s *model.AgentState) error {
			s.FinalStatus = model.FinalSuccess
			return nil
		}),
	}}
	env.RegisterActivity(act.RunPlanner)
	env.RegisterActivity(act.RunExecutor)
	env.RegisterActivity(act.RunValidator)
	env.RegisterWorkflow(planexectemporal.Workflow)

	initial := model.NewAgentState("do it", "thread-1", "user-1", time.Now())
	env.ExecuteWorkflow(planexectemporal.Workflow, initial)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.AgentState
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, model.FinalSuccess, result.FinalStatus)
}
