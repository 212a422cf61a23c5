// Package validator implements the Validator node (spec §3): once every
// TaskStep has been resolved (completed or terminally failed), it decides
// whether the accumulated StepResults actually satisfy ParsedIntent.Goal and
// sets AgentState.FinalStatus accordingly. Like the Planner, it consults a
// chatgen.Generator for the judgment call; a verdict that fails to parse
// defaults to success rather than failing the workflow closed, since the
// model did render a judgment, it just didn't come back in the expected
// shape.
package validator

import (
	"context"
	"time"

	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/telemetry"
)

type (
	// Option configures a Node at construction time.
	Option func(*Node)

	// Node is the Validator workflow node.
	Node struct {
		chat    chatgen.Generator
		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}

	verdictJSON struct {
		Satisfied   bool     `json:"satisfied"`
		Explanation string   `json:"explanation"`
		Suggestions []string `json:"suggestions"`
	}
)

// WithLogger sets the Node's logger.
func WithLogger(l telemetry.Logger) Option { return func(n *Node) { n.logger = l } }

// WithMetrics sets the Node's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(n *Node) { n.metrics = m } }

// WithTracer sets the Node's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(n *Node) { n.tracer = t } }

// New constructs a Validator node from its chat generator collaborator.
func New(chat chatgen.Generator, opts ...Option) *Node {
	n := &Node{
		chat:    chat,
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(n)
		}
	}
	return n
}

// Run judges the finished plan and sets state.FinalStatus. Any step left in
// model.StepFailed status is treated as an automatic failure without
// consulting the model, since a partially-failed plan cannot have satisfied
// its goal (spec §8 invariant: success requires all steps completed).
func (n *Node) Run(ctx context.Context, state *model.AgentState) error {
	ctx, span := n.tracer.Start(ctx, "validator.run")
	defer span.End()
	state.CurrentAgent = model.RoleValidator
	defer func() { state.UpdatedAt = time.Now() }()

	if hasFailedStep(state.TodoList) {
		state.FinalStatus = model.FinalFailed
		if state.ErrorInfo == nil {
			state.ErrorInfo = &model.ErrorInfo{Message: "one or more steps failed terminally"}
		}
		n.metrics.IncCounter("validator.verdict", 1, "result", "failed")
		return nil
	}

	resp, err := n.chat.Generate(ctx, n.buildRequest(state))
	if err != nil {
		// Unlike an unparseable verdict below, a collaborator outage means no
		// judgment was rendered at all; fail closed and let the caller retry
		// the workflow rather than assume success.
		state.FinalStatus = model.FinalFailed
		state.ErrorInfo = &model.ErrorInfo{Message: "validator could not reach chat generator: " + err.Error()}
		n.metrics.IncCounter("validator.generate.error", 1)
		return nil
	}

	verdict, ok := parseVerdict(resp.Text)
	if !ok {
		// On parse failure, default to success: the model did render a
		// verdict, it just didn't come back in the expected shape.
		state.FinalStatus = model.FinalSuccess
		state.ErrorInfo = nil
		n.metrics.IncCounter("validator.verdict", 1, "result", "success_unparsed")
		n.logger.Warn(ctx, "verdict response could not be parsed, defaulting to success", "conversation_id", state.ConversationID)
		return nil
	}

	if !verdict.Satisfied {
		state.FinalStatus = model.FinalFailed
		msg := "plan did not satisfy the goal"
		if verdict.Explanation != "" {
			msg = verdict.Explanation
		}
		state.ErrorInfo = &model.ErrorInfo{Message: msg, Suggestions: verdict.Suggestions}
		n.metrics.IncCounter("validator.verdict", 1, "result", "failed")
		return nil
	}

	state.FinalStatus = model.FinalSuccess
	state.ErrorInfo = nil
	n.metrics.IncCounter("validator.verdict", 1, "result", "success")
	n.logger.Info(ctx, "plan validated", "conversation_id", state.ConversationID)
	return nil
}

func hasFailedStep(steps []model.TaskStep) bool {
	for _, s := range steps {
		if s.Status == model.StepFailed {
			return true
		}
	}
	return false
}

func (n *Node) buildRequest(state *model.AgentState) chatgen.Request {
	goal := ""
	if state.ParsedIntent != nil {
		goal = state.ParsedIntent.Goal
	}
	var transcript string
	for _, r := range state.StepResults {
		transcript += "- " + r.StepTitle + "\n"
	}
	return chatgen.Request{
		System: `Judge whether the completed steps satisfy the stated goal. Respond as JSON ` +
			`{"satisfied":true|false,"explanation":"","suggestions":[]}.`,
		Messages: []chatgen.Message{
			{Role: chatgen.RoleUser, Content: "Goal: " + goal + "\nCompleted steps:\n" + transcript},
		},
	}
}

func parseVerdict(text string) (verdictJSON, bool) {
	var v verdictJSON
	if err := chatgen.ParseStructured(text, &v); err != nil {
		return verdictJSON{}, false
	}
	return v, true
}
