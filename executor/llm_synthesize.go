package executor

import (
	"context"
	"fmt"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/toolregistry"
)

// RequiresUserInput is returned by a ParamSynthesizer to signal spec §4.3
// step 3b.ii's dynamic suspend case: the model judged that it cannot
// synthesize arguments for this tool call without further human input. It is
// distinct from toolregistry.Schema.RequiresUserConfig, which is a static
// per-tool declaration checked independently of synthesis.
type RequiresUserInput struct {
	MissingParams []string
	Reason        string
}

func (e *RequiresUserInput) Error() string {
	return fmt.Sprintf("requires user input: %s", e.Reason)
}

type synthesizeJSON struct {
	RequiresUserInput bool     `json:"requires_user_input"`
	MissingParams     []string `json:"missing_params"`
	Reason            string   `json:"reason"`
	Arguments         map[string]any `json:"arguments"`
}

// NewLLMSynthesize returns a ParamSynthesizer implementing spec §4.3 step
// 3b: when step.ToolInput is already populated (a prior synthesis, or the
// Planner supplied it directly), it skips the model call and falls back to
// DefaultSynthesize's merge; otherwise it builds a context snapshot of
// {user_input, previous results, retrieved_knowledge}, prompts chat for
// either a JSON argument mapping or the requires_user_input sentinel, and
// returns a *RequiresUserInput error in the latter case so Run can suspend
// the step.
func NewLLMSynthesize(chat chatgen.Generator) ParamSynthesizer {
	return func(ctx context.Context, step model.TaskStep, state *model.AgentState, schema toolregistry.Schema) (map[string]any, error) {
		if len(step.ToolInput) > 0 {
			return DefaultSynthesize(ctx, step, state, schema)
		}

		resp, err := chat.Generate(ctx, buildSynthesisRequest(step, state, schema))
		if err != nil {
			return nil, fmt.Errorf("chat generator call failed: %w", err)
		}

		var parsed synthesizeJSON
		if parseErr := chatgen.ParseStructured(resp.Text, &parsed); parseErr != nil {
			// Unparseable JSON is not a synthesis failure: treat it as an
			// empty argument mapping and let the tool invocation (or its
			// schema validation) decide whether to reject it.
			return map[string]any{}, nil
		}
		if parsed.RequiresUserInput {
			return nil, &RequiresUserInput{MissingParams: parsed.MissingParams, Reason: parsed.Reason}
		}
		if parsed.Arguments == nil {
			return map[string]any{}, nil
		}

		args := make(map[string]any, len(parsed.Arguments)+len(state.UserProvidedConfig))
		for k, v := range parsed.Arguments {
			args[k] = v
		}
		for k, v := range state.UserProvidedConfig {
			args[k] = v
		}
		return args, nil
	}
}

func buildSynthesisRequest(step model.TaskStep, state *model.AgentState, schema toolregistry.Schema) chatgen.Request {
	var transcript string
	for _, r := range state.StepResults {
		transcript += fmt.Sprintf("- %s: %v\n", r.StepTitle, r.Result)
	}
	var knowledge string
	for _, id := range state.RetrievedDocs {
		knowledge += "- " + id + "\n"
	}
	return chatgen.Request{
		System: fmt.Sprintf(
			`Synthesize arguments for tool %q (%s) conforming to its parameter schema. `+
				`Respond as JSON {"arguments":{}} or, if required information is missing, `+
				`{"requires_user_input":true,"missing_params":[],"reason":""}.`,
			step.ToolName, schema.Description),
		Messages: []chatgen.Message{
			{Role: chatgen.RoleUser, Content: fmt.Sprintf(
				"User request: %s\nStep: %s — %s\nPrevious results:\n%sRetrieved knowledge:\n%s",
				state.UserInput, step.Title, step.Description, transcript, knowledge)},
		},
	}
}
