package anthropic

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/chatgen"
)

type fakeMessagesClient struct {
	called bool
	body   sdk.MessageNewParams
	resp   *sdk.Message
	err    error
}

func (f *fakeMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.called = true
	f.body = body
	return f.resp, f.err
}

func TestNewRejectsMissingClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "claude-sonnet-4-5"})
	assert.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(&fakeMessagesClient{}, Options{})
	assert.Error(t, err)
}

func TestNewDefaultsMaxTokens(t *testing.T) {
	c, err := New(&fakeMessagesClient{}, Options{DefaultModel: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), c.maxTok)
}

func TestToAnthropicMessagesMapsRoles(t *testing.T) {
	out := toAnthropicMessages([]chatgen.Message{
		{Role: chatgen.RoleUser, Content: "hi"},
		{Role: chatgen.RoleAssistant, Content: "hello"},
	})
	require.Len(t, out, 2)
}

func TestToAnthropicToolsCarriesNameAndDescription(t *testing.T) {
	out := toAnthropicTools([]chatgen.ToolDescriptor{
		{Name: "calculator", Description: "does math", Parameters: map[string]any{"properties": map[string]any{}}},
	})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "calculator", out[0].OfTool.Name)
}

func TestGeneratePropagatesClientError(t *testing.T) {
	fake := &fakeMessagesClient{err: assertErr("boom")}
	c, err := New(fake, Options{DefaultModel: "claude-sonnet-4-5"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), chatgen.Request{Messages: []chatgen.Message{{Role: chatgen.RoleUser, Content: "hi"}}})
	assert.True(t, fake.called)
	assert.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
