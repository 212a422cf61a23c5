package supervisor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/supervisor"
)

func TestRouteFreshStateGoesToPlanner(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	assert.Equal(t, supervisor.NodePlanner, supervisor.Route(state))
}

func TestRoutePendingUserInputEndsLoop(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
	state.PendingUserInput = &model.PendingUserInput{StepID: "s1"}
	assert.Equal(t, supervisor.NodeEnd, supervisor.Route(state))
}

func TestRoutePendingStepGoesToExecutor(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
	assert.Equal(t, supervisor.NodeExecutor, supervisor.Route(state))
}

func TestRouteAllStepsResolvedGoesToValidator(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{
		{ID: "s1", Status: model.StepCompleted},
		{ID: "s2", Status: model.StepFailed},
	}
	state.CurrentStepIndex = len(state.TodoList)
	assert.Equal(t, supervisor.NodeValidator, supervisor.Route(state))
}

func TestRouteTerminalFailureOnNonLastStepEndsLoopEvenWithPendingStepsRemaining(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{
		{ID: "s1", Status: model.StepFailed},
		{ID: "s2", Status: model.StepPending},
		{ID: "s3", Status: model.StepPending},
	}
	state.CurrentStepIndex = 0
	state.FinalStatus = model.FinalFailed
	assert.Equal(t, supervisor.NodeEnd, supervisor.Route(state), "a resolved final_status ends the thread regardless of later pending steps")
}

func TestRouteIndexWithinRangeGoesToExecutorRegardlessOfStepStatus(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{
		{ID: "s1", Status: model.StepFailed},
		{ID: "s2", Status: model.StepPending},
	}
	state.CurrentStepIndex = 0
	assert.Equal(t, supervisor.NodeExecutor, supervisor.Route(state), "CurrentStepIndex, not step status scanning, drives routing")
}

func TestRouteFinalStatusEndsLoop(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepCompleted}}
	state.FinalStatus = model.FinalSuccess
	assert.Equal(t, supervisor.NodeEnd, supervisor.Route(state))
}

func TestRouteNilStateEndsLoop(t *testing.T) {
	assert.Equal(t, supervisor.NodeEnd, supervisor.Route(nil))
}

func TestRouteIsPureAndDeterministic(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
	before := *state
	first := supervisor.Route(state)
	second := supervisor.Route(state)
	assert.Equal(t, first, second)
	assert.Equal(t, before.TodoList, state.TodoList, "Route must not mutate state")
}
