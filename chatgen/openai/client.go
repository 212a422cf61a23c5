// Package openai adapts github.com/openai/openai-go's chat completions API to
// the chatgen.Generator interface, following the same ChatClient
// subset-interface convention used by the other provider adapters so tests
// can substitute a fake completion call.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/planexec/planexec/chatgen"
)

// ChatClient mirrors the subset of the OpenAI SDK's chat completions service
// the adapter needs.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int64
	Temperature  float64
}

// Client implements chatgen.Generator on top of OpenAI chat completions.
type Client struct {
	chat  ChatClient
	model string
	maxTok int64
	temp  float64
}

// New builds a Generator from an OpenAI chat client and options.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{chat: chat, model: opts.DefaultModel, maxTok: opts.MaxTokens, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client
// and the given apiKey, which must be non-empty.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Generate implements chatgen.Generator.
func (c *Client) Generate(ctx context.Context, req chatgen.Request) (chatgen.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	} else if c.maxTok > 0 {
		params.MaxTokens = openai.Int(c.maxTok)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	completion, err := c.chat.New(ctx, params)
	if err != nil {
		return chatgen.Response{}, err
	}
	return fromOpenAICompletion(completion), nil
}

func toOpenAIMessages(system string, msgs []chatgen.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range msgs {
		switch m.Role {
		case chatgen.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toOpenAITools(tools []chatgen.ToolDescriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAICompletion(completion *openai.ChatCompletion) chatgen.Response {
	if len(completion.Choices) == 0 {
		return chatgen.Response{}
	}
	choice := completion.Choices[0]
	resp := chatgen.Response{Text: choice.Message.Content, StopReason: string(choice.FinishReason)}
	for _, call := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		resp.ToolCalls = append(resp.ToolCalls, chatgen.ToolCall{Name: call.Function.Name, Arguments: args})
	}
	return resp
}
