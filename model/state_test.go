package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/model"
)

func TestNewAgentStateDefaults(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	assert.Equal(t, model.FinalPending, state.FinalStatus)
	assert.Equal(t, model.RoleSupervisor, state.CurrentAgent)
	assert.Equal(t, 0, state.CurrentStepIndex)
	require.NoError(t, state.Validate())
}

func TestCloneIsIndependent(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
	state.Context = map[string]any{"k": "v"}

	clone := state.Clone()
	clone.TodoList[0].Status = model.StepCompleted
	clone.Context["k"] = "mutated"

	assert.Equal(t, model.StepPending, state.TodoList[0].Status)
	assert.Equal(t, "v", state.Context["k"])
}

func TestCurrentStepOutOfRange(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	assert.Nil(t, state.CurrentStep())

	state.TodoList = []model.TaskStep{{ID: "s1"}}
	state.CurrentStepIndex = 0
	require.NotNil(t, state.CurrentStep())
	assert.Equal(t, "s1", state.CurrentStep().ID)
}

func TestValidateRejectsTooManySteps(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	for i := 0; i <= model.MaxTaskSteps; i++ {
		state.TodoList = append(state.TodoList, model.TaskStep{ID: "s"})
	}
	assert.Error(t, state.Validate())
}

func TestValidateRejectsExcessRetryCount(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", RetryCount: model.MaxRetryCount + 1}}
	assert.Error(t, state.Validate())
}

func TestValidateRejectsMultipleRunningSteps(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{
		{ID: "s1", Status: model.StepRunning},
		{ID: "s2", Status: model.StepRunning},
	}
	assert.Error(t, state.Validate())
}

func TestValidateRejectsSuccessWithIncompleteSteps(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepPending}}
	state.FinalStatus = model.FinalSuccess
	assert.Error(t, state.Validate())
}

func TestValidateAcceptsSuccessWithAllCompleted(t *testing.T) {
	state := model.NewAgentState("hi", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Status: model.StepCompleted}}
	state.FinalStatus = model.FinalSuccess
	assert.NoError(t, state.Validate())
}
