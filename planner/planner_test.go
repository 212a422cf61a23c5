package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/knowledge"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/planner"
	"github.com/planexec/planexec/toolregistry"
)

func TestRunSuccessPopulatesTodoList(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{
		Text: `{"goal":"answer the question","required_tools":["calculator"],"confidence":0.9,` +
			`"steps":[{"title":"compute","description":"do the math","tool_name":"calculator"}]}`,
	})
	reg := toolregistry.New()
	require.NoError(t, toolregistry.RegisterBuiltins(reg))
	node := planner.New(gen, knowledge.NewInMemory(), reg)

	state := model.NewAgentState("what is 2 + 2", "c1", "u1", time.Now())
	require.NoError(t, node.Run(context.Background(), state))

	require.NotNil(t, state.ParsedIntent)
	assert.Equal(t, "answer the question", state.ParsedIntent.Goal)
	require.Len(t, state.TodoList, 1)
	assert.Equal(t, "compute", state.TodoList[0].Title)
	assert.Equal(t, model.StepPending, state.TodoList[0].Status)
	assert.Nil(t, state.ErrorInfo)
}

func TestRunParseFailureSetsErrorInfoNotError(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{Text: "not json at all"})
	node := planner.New(gen, knowledge.NewInMemory(), toolregistry.New())

	state := model.NewAgentState("hello", "c1", "u1", time.Now())
	err := node.Run(context.Background(), state)

	require.NoError(t, err, "a malformed model response is not a Go error")
	assert.Nil(t, state.ParsedIntent)
	require.NotNil(t, state.ErrorInfo)
	assert.Equal(t, model.FinalFailed, state.FinalStatus, "a plan that never parses must resolve the thread, not spin forever")
}

func TestRunPopulatesToolInputFromPlan(t *testing.T) {
	gen := chatgen.NewStatic(chatgen.Response{
		Text: `{"goal":"answer the question","required_tools":["calculator"],"confidence":0.9,` +
			`"steps":[{"title":"compute","description":"do the math","tool_name":"calculator","tool_input":{"expression":"2 + 2"}}]}`,
	})
	reg := toolregistry.New()
	require.NoError(t, toolregistry.RegisterBuiltins(reg))
	node := planner.New(gen, knowledge.NewInMemory(), reg)

	state := model.NewAgentState("what is 2 + 2", "c1", "u1", time.Now())
	require.NoError(t, node.Run(context.Background(), state))

	require.Len(t, state.TodoList, 1)
	assert.Equal(t, "2 + 2", state.TodoList[0].ToolInput["expression"])
}

func TestRunWrapsKnowledgeSearchErrors(t *testing.T) {
	gen := chatgen.NewStatic()
	node := planner.New(gen, failingSearcher{}, toolregistry.New())

	state := model.NewAgentState("hello", "c1", "u1", time.Now())
	err := node.Run(context.Background(), state)
	require.Error(t, err)
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, int) ([]knowledge.Document, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "search backend unavailable" }
