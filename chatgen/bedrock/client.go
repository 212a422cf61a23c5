// Package bedrock adapts the AWS Bedrock Converse API
// (github.com/aws/aws-sdk-go-v2/service/bedrockruntime) to the
// chatgen.Generator interface, following the teacher's RuntimeClient
// subset-interface convention so tests can substitute a fake Converse call.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/planexec/planexec/chatgen"
)

// RuntimeClient mirrors the subset of *bedrockruntime.Client the adapter
// needs, so callers can substitute a fake in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
}

// Client implements chatgen.Generator on top of AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
	maxTok  int32
	temp    float32
}

// New builds a Generator from a Bedrock runtime client and options.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Client{runtime: opts.Runtime, model: opts.DefaultModel, maxTok: maxTok, temp: opts.Temperature}, nil
}

// Generate implements chatgen.Generator.
func (c *Client) Generate(ctx context.Context, req chatgen.Request) (chatgen.Response, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: toBedrockMessages(req.Messages),
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTok),
			Temperature: aws.Float32(c.temp),
		},
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(req.Tools)
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return chatgen.Response{}, err
	}
	return fromBedrockOutput(out), nil
}

func toBedrockMessages(msgs []chatgen.Message) []brtypes.Message {
	out := make([]brtypes.Message, 0, len(msgs))
	for _, m := range msgs {
		role := brtypes.ConversationRoleUser
		if m.Role == chatgen.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

func toBedrockToolConfig(tools []chatgen.ToolDescriptor) *brtypes.ToolConfiguration {
	specs := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(t.Parameters),
				},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) chatgen.Response {
	resp := chatgen.Response{StopReason: string(out.StopReason)}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch variant := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += variant.Value
		case *brtypes.ContentBlockMemberToolUse:
			var args map[string]any
			if variant.Value.Input != nil {
				raw, _ := variant.Value.Input.MarshalSmithyDocument()
				_ = json.Unmarshal(raw, &args)
			}
			name := aws.ToString(variant.Value.Name)
			resp.ToolCalls = append(resp.ToolCalls, chatgen.ToolCall{Name: name, Arguments: args})
		}
	}
	return resp
}
