// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's Messages
// API to the chatgen.Generator interface, following the same
// capture-the-subset-as-an-interface pattern as the teacher's
// features/model/anthropic client: a MessagesClient interface describes only
// the calls the adapter needs, so tests can substitute a fake without
// depending on the real SDK's transport.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/planexec/planexec/chatgen"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK used by the
	// adapter, so callers can pass either a real client or a fake in tests.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures the adapter's defaults.
	Options struct {
		DefaultModel string
		MaxTokens    int64
		Temperature  float64
	}

	// Client implements chatgen.Generator on top of Anthropic Claude Messages.
	Client struct {
		msg   MessagesClient
		model string
		maxTok int64
		temp  float64
	}
)

// New builds a Generator from an Anthropic Messages client and options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	maxTok := opts.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &Client{msg: msg, model: opts.DefaultModel, maxTok: maxTok, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client
// and the given apiKey, which must be non-empty.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Generate implements chatgen.Generator.
func (c *Client) Generate(ctx context.Context, req chatgen.Request) (chatgen.Response, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTok,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return chatgen.Response{}, err
	}
	return fromAnthropicMessage(msg), nil
}

func toAnthropicMessages(msgs []chatgen.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case chatgen.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

func toAnthropicTools(tools []chatgen.ToolDescriptor) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := sdk.ToolInputSchemaParam{}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func fromAnthropicMessage(msg *sdk.Message) chatgen.Response {
	resp := chatgen.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Text += variant.Text
		case sdk.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(variant.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, chatgen.ToolCall{Name: variant.Name, Arguments: args})
		}
	}
	return resp
}
