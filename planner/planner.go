// Package planner implements the Planner node (spec §3): it turns
// AgentState.UserInput into a ParsedIntent and an ordered TodoList of
// TaskSteps, consulting a knowledge.Searcher for grounding context and a
// chatgen.Generator to synthesize the plan. Like the teacher's
// runtime/agent/planner package, the node is constructed with its
// collaborators injected rather than reaching for package-level singletons,
// and a malformed model response is returned as a typed ParseFailure value
// instead of being thrown as an error.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/knowledge"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/toolregistry"
	"github.com/planexec/planexec/workflowerrors"
)

type (
	// OutcomeKind distinguishes a successfully parsed plan from a malformed
	// model response, mirroring the teacher's tagged PlanResult/RetryReason
	// vocabulary without resorting to sentinel errors for an expected case.
	OutcomeKind string

	// Outcome is the Planner's result: either Kind == OutcomeSuccess and
	// Intent/Steps are populated, or Kind == OutcomeParseFailure and Reason
	// explains what about the model's response could not be parsed.
	Outcome struct {
		Kind   OutcomeKind
		Intent model.ParsedIntent
		Steps  []model.TaskStep
		Reason string
	}

	// Option configures a Node at construction time.
	Option func(*Node)

	// Node is the Planner workflow node.
	Node struct {
		chat      chatgen.Generator
		search    knowledge.Searcher
		registry  *toolregistry.Registry
		logger    telemetry.Logger
		metrics   telemetry.Metrics
		tracer    telemetry.Tracer
		newID     func() string
		knowledgeK int
	}

	planJSON struct {
		Goal          string   `json:"goal"`
		RequiredTools []string `json:"required_tools"`
		Confidence    float64  `json:"confidence"`
		Steps         []struct {
			Title       string         `json:"title"`
			Description string         `json:"description"`
			ToolName    string         `json:"tool_name"`
			ToolInput   map[string]any `json:"tool_input"`
		} `json:"steps"`
	}
)

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeParseFailure OutcomeKind = "parse_failure"
)

// WithLogger sets the Node's logger.
func WithLogger(l telemetry.Logger) Option { return func(n *Node) { n.logger = l } }

// WithMetrics sets the Node's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(n *Node) { n.metrics = m } }

// WithTracer sets the Node's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(n *Node) { n.tracer = t } }

// WithKnowledgeTopK overrides how many knowledge documents are retrieved per
// plan (default 3).
func WithKnowledgeTopK(k int) Option { return func(n *Node) { n.knowledgeK = k } }

// New constructs a Planner node from its required collaborators.
func New(chat chatgen.Generator, search knowledge.Searcher, registry *toolregistry.Registry, opts ...Option) *Node {
	n := &Node{
		chat:       chat,
		search:     search,
		registry:   registry,
		logger:     telemetry.NewNoopLogger(),
		metrics:    telemetry.NewNoopMetrics(),
		tracer:     telemetry.NewNoopTracer(),
		newID:      func() string { return uuid.NewString() },
		knowledgeK: 3,
	}
	for _, o := range opts {
		if o != nil {
			o(n)
		}
	}
	return n
}

// Run produces a plan for state.UserInput and writes it into state
// (ParsedIntent, TodoList, CurrentAgent). It returns an error only for
// collaborator failures (knowledge search, chat generation); a model
// response that fails to parse is recorded as a ParseFailure Outcome and
// surfaced to the caller as state.ErrorInfo with FinalStatus set to
// FinalFailed, not as a Go error, so the Supervisor ends the thread; the
// Planner is not asked to try again.
func (n *Node) Run(ctx context.Context, state *model.AgentState) error {
	ctx, span := n.tracer.Start(ctx, "planner.run")
	defer span.End()
	state.CurrentAgent = model.RolePlanner

	docs, err := n.search.Search(ctx, state.UserInput, n.knowledgeK)
	if err != nil {
		return workflowerrors.Wrap(workflowerrors.KindPlanningError, "knowledge search failed", err)
	}
	for _, d := range docs {
		state.RetrievedDocs = append(state.RetrievedDocs, d.ID)
	}

	resp, err := n.chat.Generate(ctx, n.buildRequest(state, docs))
	if err != nil {
		n.metrics.IncCounter("planner.generate.error", 1)
		return workflowerrors.Wrap(workflowerrors.KindPlanningError, "chat generator call failed", err)
	}

	outcome := n.parse(resp.Text)
	switch outcome.Kind {
	case OutcomeSuccess:
		state.ParsedIntent = &outcome.Intent
		state.TodoList = outcome.Steps
		state.ErrorInfo = nil
		n.logger.Info(ctx, "plan synthesized", "conversation_id", state.ConversationID, "steps", len(outcome.Steps))
	case OutcomeParseFailure:
		state.ErrorInfo = &model.ErrorInfo{Message: "planner response could not be parsed: " + outcome.Reason}
		state.FinalStatus = model.FinalFailed
		n.logger.Warn(ctx, "plan parse failure", "conversation_id", state.ConversationID, "reason", outcome.Reason)
		n.metrics.IncCounter("planner.parse_failure", 1)
	}
	state.UpdatedAt = time.Now()
	return nil
}

func (n *Node) buildRequest(state *model.AgentState, docs []knowledge.Document) chatgen.Request {
	var tools []chatgen.ToolDescriptor
	if n.registry != nil {
		for _, s := range n.registry.ListSchemas() {
			tools = append(tools, chatgen.ToolDescriptor{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
		}
	}
	context := ""
	for _, d := range docs {
		context += fmt.Sprintf("- %s: %s\n", d.Title, d.Content)
	}
	return chatgen.Request{
		System: "You are a planning agent. Decompose the user request into an ordered JSON plan " +
			`of the shape {"goal":"","required_tools":[],"confidence":0.0,"steps":[{"title":"","description":"","tool_name":"","tool_input":{}}]}. ` +
			`Populate tool_input with any arguments already known from the request so the Executor doesn't need to ask again.`,
		Messages: []chatgen.Message{
			{Role: chatgen.RoleUser, Content: "Context:\n" + context + "\nRequest: " + state.UserInput},
		},
		Tools: tools,
	}
}

// parse attempts to decode text as a planJSON document. Any failure is
// reported as an OutcomeParseFailure rather than a Go error.
func (n *Node) parse(text string) Outcome {
	var parsed planJSON
	if err := chatgen.ParseStructured(text, &parsed); err != nil {
		return Outcome{Kind: OutcomeParseFailure, Reason: err.Error()}
	}
	if parsed.Goal == "" || len(parsed.Steps) == 0 {
		return Outcome{Kind: OutcomeParseFailure, Reason: "plan is missing a goal or has no steps"}
	}
	if len(parsed.Steps) > model.MaxTaskSteps {
		return Outcome{Kind: OutcomeParseFailure, Reason: "plan exceeds MAX_TASK_STEPS"}
	}

	steps := make([]model.TaskStep, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		steps = append(steps, model.TaskStep{
			ID:          n.newID(),
			Title:       s.Title,
			Description: s.Description,
			Status:      model.StepPending,
			ToolName:    s.ToolName,
			ToolInput:   s.ToolInput,
		})
	}
	return Outcome{
		Kind: OutcomeSuccess,
		Intent: model.ParsedIntent{
			Goal:          parsed.Goal,
			RequiredTools: parsed.RequiredTools,
			Confidence:    parsed.Confidence,
		},
		Steps: steps,
	}
}
