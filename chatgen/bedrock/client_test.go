package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/chatgen"
)

type fakeRuntimeClient struct {
	called bool
	input  *bedrockruntime.ConverseInput
	output *bedrockruntime.ConverseOutput
	err    error
}

func (f *fakeRuntimeClient) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.called = true
	f.input = params
	return f.output, f.err
}

func TestNewRejectsMissingRuntime(t *testing.T) {
	_, err := New(Options{DefaultModel: "anthropic.claude-v2"})
	assert.Error(t, err)
}

func TestNewRejectsMissingDefaultModel(t *testing.T) {
	_, err := New(Options{Runtime: &fakeRuntimeClient{}})
	assert.Error(t, err)
}

func TestNewDefaultsMaxTokens(t *testing.T) {
	c, err := New(Options{Runtime: &fakeRuntimeClient{}, DefaultModel: "anthropic.claude-v2"})
	require.NoError(t, err)
	assert.Equal(t, int32(4096), c.maxTok)
}

func TestToBedrockMessagesMapsRoles(t *testing.T) {
	out := toBedrockMessages([]chatgen.Message{
		{Role: chatgen.RoleUser, Content: "hi"},
		{Role: chatgen.RoleAssistant, Content: "hello"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, brtypes.ConversationRoleUser, out[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, out[1].Role)
}

func TestGenerateMapsTextResponse(t *testing.T) {
	fake := &fakeRuntimeClient{
		output: &bedrockruntime.ConverseOutput{
			StopReason: brtypes.StopReasonEndTurn,
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role:    brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello there"}},
				},
			},
		},
	}
	c, err := New(Options{Runtime: fake, DefaultModel: "anthropic.claude-v2"})
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), chatgen.Request{Messages: []chatgen.Message{{Role: chatgen.RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.True(t, fake.called)
	assert.Equal(t, "hello there", resp.Text)
}

func TestGeneratePropagatesClientError(t *testing.T) {
	fake := &fakeRuntimeClient{err: boomErr("boom")}
	c, err := New(Options{Runtime: fake, DefaultModel: "anthropic.claude-v2"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), chatgen.Request{Messages: []chatgen.Message{{Role: chatgen.RoleUser, Content: "hi"}}})
	assert.Error(t, err)
}

type boomErr string

func (e boomErr) Error() string { return string(e) }
