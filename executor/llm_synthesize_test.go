package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/executor"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/toolregistry"
)

func TestLLMSynthesizeSkipsChatCallWhenToolInputAlreadyPresent(t *testing.T) {
	gen := chatgen.NewStatic()
	synth := executor.NewLLMSynthesize(gen)

	step := model.TaskStep{ToolName: "calculator", ToolInput: map[string]any{"expression": "2 + 2"}}
	state := model.NewAgentState("what is 2 + 2", "c1", "u1", time.Now())

	args, err := synth(context.Background(), step, state, toolregistry.Schema{})
	require.NoError(t, err)
	assert.Equal(t, "2 + 2", args["expression"])
	assert.Empty(t, gen.Calls(), "already-synthesized tool input should not trigger another model call")
}

func TestLLMSynthesizeParsesArgumentMapping(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{Text: `{"arguments":{"expression":"2 + 3 * 4"}}`})
	synth := executor.NewLLMSynthesize(gen)

	step := model.TaskStep{ID: "s1", Title: "compute", ToolName: "calculator"}
	state := model.NewAgentState("what is 2 + 3 * 4", "c1", "u1", time.Now())

	args, err := synth(context.Background(), step, state, toolregistry.Schema{Name: "calculator"})
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 * 4", args["expression"])
	assert.Len(t, gen.Calls(), 1)
}

func TestLLMSynthesizeReturnsSentinelOnRequiresUserInput(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{
		Text: `{"requires_user_input":true,"missing_params":["api_key"],"reason":"no credential on file"}`,
	})
	synth := executor.NewLLMSynthesize(gen)

	step := model.TaskStep{ID: "s1", ToolName: "needs_key"}
	state := model.NewAgentState("do it", "c1", "u1", time.Now())

	_, err := synth(context.Background(), step, state, toolregistry.Schema{Name: "needs_key"})
	require.Error(t, err)

	var sentinel *executor.RequiresUserInput
	require.True(t, errors.As(err, &sentinel))
	assert.Equal(t, []string{"api_key"}, sentinel.MissingParams)
	assert.Equal(t, "no credential on file", sentinel.Reason)
}

func TestLLMSynthesizeUnparseableResponseFallsBackToEmptyArgs(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{Text: "not json at all"})
	synth := executor.NewLLMSynthesize(gen)

	step := model.TaskStep{ID: "s1", ToolName: "calculator"}
	state := model.NewAgentState("do it", "c1", "u1", time.Now())

	args, err := synth(context.Background(), step, state, toolregistry.Schema{Name: "calculator"})
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestExecutorSuspendsWhenLLMSynthesisRequiresUserInput(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{
		Text: `{"requires_user_input":true,"missing_params":["region"],"reason":"ambiguous deployment target"}`,
	})
	reg := toolregistry.New()
	require.NoError(t, reg.Register(toolregistry.Schema{Name: "deploy"}, func(context.Context, map[string]any) (any, error) {
		return "ok", nil
	}))
	node := executor.New(reg, executor.WithSynthesizer(executor.NewLLMSynthesize(gen)))

	state := model.NewAgentState("deploy it", "c1", "u1", time.Now())
	state.TodoList = []model.TaskStep{{ID: "s1", Title: "deploy", Status: model.StepPending, ToolName: "deploy"}}

	require.NoError(t, node.Run(context.Background(), state))
	require.NotNil(t, state.PendingUserInput)
	assert.Equal(t, "region", state.PendingUserInput.MissingParams[0])
	assert.Equal(t, model.StepRunning, state.TodoList[0].Status)
}
