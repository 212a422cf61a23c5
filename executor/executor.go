// Package executor implements the Executor node (spec §3/§4): it advances
// the step at state.CurrentStepIndex by synthesizing tool arguments, invoking
// the tool through toolregistry with a timeout bound to the tool's declared
// TimeoutSeconds, and applying the retry/suspend/fail state machine
// (pending -> running -> completed, or running -> failed -> retry|terminal,
// or running -> suspended on missing user-provided config). The shape
// mirrors the teacher's runtime/toolregistry/executor package (OTel spans
// around each invocation, a bounded-retry envelope, structured result
// capture) with the transport swapped from Pulse/Redis streams to a direct
// in-process toolregistry.Invoker call.
package executor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/toolregistry"
	"github.com/planexec/planexec/workflowerrors"
)

type (
	// ParamSynthesizer turns a TaskStep plus the accumulated AgentState
	// context into the argument map passed to the tool invoker. The default
	// synthesizer (DefaultSynthesize) merges TaskStep.ToolInput with
	// AgentState.UserProvidedConfig; callers needing LLM-driven parameter
	// synthesis can supply NewLLMSynthesize via WithSynthesizer. A
	// synthesizer may return a *RequiresUserInput error to suspend the step
	// for human input instead of failing it.
	ParamSynthesizer func(ctx context.Context, step model.TaskStep, state *model.AgentState, schema toolregistry.Schema) (map[string]any, error)

	// Option configures a Node at construction time.
	Option func(*Node)

	// Node is the Executor workflow node.
	Node struct {
		registry       *toolregistry.Registry
		synthesize     ParamSynthesizer
		logger         telemetry.Logger
		metrics        telemetry.Metrics
		tracer         telemetry.Tracer
		limiter        *rate.Limiter
		maxRetry       int
		defaultTimeout time.Duration
		now            func() time.Time
	}
)

// WithLogger sets the Node's logger.
func WithLogger(l telemetry.Logger) Option { return func(n *Node) { n.logger = l } }

// WithMetrics sets the Node's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(n *Node) { n.metrics = m } }

// WithTracer sets the Node's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(n *Node) { n.tracer = t } }

// WithSynthesizer overrides the default ToolInput/UserProvidedConfig merge
// with a custom ParamSynthesizer.
func WithSynthesizer(s ParamSynthesizer) Option { return func(n *Node) { n.synthesize = s } }

// WithMaxRetry overrides model.MaxRetryCount for this Node.
func WithMaxRetry(max int) Option { return func(n *Node) { n.maxRetry = max } }

// WithRateLimiter bounds the sustained tool invocation rate (it does not cap
// how many invocations are in flight at once),
// following the teacher's use of golang.org/x/time/rate to protect
// downstream tool backends from bursty Executor traffic.
func WithRateLimiter(l *rate.Limiter) Option { return func(n *Node) { n.limiter = l } }

// New constructs an Executor node bound to registry.
func New(registry *toolregistry.Registry, opts ...Option) *Node {
	n := &Node{
		registry:       registry,
		synthesize:     DefaultSynthesize,
		logger:         telemetry.NewNoopLogger(),
		metrics:        telemetry.NewNoopMetrics(),
		tracer:         telemetry.NewNoopTracer(),
		maxRetry:       model.MaxRetryCount,
		defaultTimeout: time.Duration(model.DefaultToolTimeoutSeconds) * time.Second,
		now:            time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(n)
		}
	}
	return n
}

// DefaultSynthesize merges the step's declared ToolInput with any
// UserProvidedConfig the human supplied during a prior suspension, the
// latter taking precedence. It never calls out to a Chat Generator; use
// NewLLMSynthesize for spec §4.3 step 3b's model-driven synthesis.
func DefaultSynthesize(_ context.Context, step model.TaskStep, state *model.AgentState, _ toolregistry.Schema) (map[string]any, error) {
	args := make(map[string]any, len(step.ToolInput)+len(state.UserProvidedConfig))
	for k, v := range step.ToolInput {
		args[k] = v
	}
	for k, v := range state.UserProvidedConfig {
		args[k] = v
	}
	return args, nil
}

// Run advances the step at state.CurrentStepIndex by exactly one invocation
// attempt. It always returns nil: tool failures are captured on the step,
// never returned, so the Supervisor can
// keep routing based on AgentState alone.
func (n *Node) Run(ctx context.Context, state *model.AgentState) error {
	ctx, span := n.tracer.Start(ctx, "executor.run")
	defer span.End()
	state.CurrentAgent = model.RoleExecutor

	if state.CurrentStepIndex >= len(state.TodoList) {
		state.FinalStatus = model.FinalSuccess
		return nil
	}
	step := &state.TodoList[state.CurrentStepIndex]

	started := n.now()
	step.Status = model.StepRunning
	step.StartedAt = &started

	if step.ToolName == "" {
		completed := n.now()
		step.Status = model.StepCompleted
		step.CompletedAt = &completed
		n.advance(state, step)
		return nil
	}

	schema, invoker, ok := n.registry.Get(step.ToolName)
	if !ok {
		n.fail(state, step, workflowerrors.Newf(workflowerrors.KindToolNotFound, "tool %q is not registered", step.ToolName))
		return nil
	}

	args, err := n.synthesize(ctx, *step, state, schema)
	if err != nil {
		var suspend *RequiresUserInput
		if errors.As(err, &suspend) {
			state.PendingUserInput = &model.PendingUserInput{
				StepID:        step.ID,
				ToolName:      step.ToolName,
				MissingParams: suspend.MissingParams,
				Reason:        suspend.Reason,
			}
			n.logger.Info(ctx, "step suspended for user input", "step_id", step.ID, "tool", step.ToolName, "reason", suspend.Reason)
			return nil
		}
		n.fail(state, step, workflowerrors.Wrap(workflowerrors.KindParamSynthesisFailure, "parameter synthesis failed", err))
		return nil
	}
	step.ToolInput = args

	if schema.RequiresUserConfig && !hasRequiredConfig(schema, args) {
		state.PendingUserInput = &model.PendingUserInput{
			StepID:        step.ID,
			ToolName:      step.ToolName,
			MissingParams: missingConfigKeys(schema, args),
			Reason:        "tool requires user-provided configuration before it can run",
		}
		n.logger.Info(ctx, "step suspended for user input", "step_id", step.ID, "tool", step.ToolName)
		return nil
	}

	if err := n.registry.ValidateArgs(step.ToolName, args); err != nil {
		n.fail(state, step, err)
		return nil
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			n.fail(state, step, workflowerrors.Wrap(workflowerrors.KindToolTimeout, "rate limiter wait failed", err))
			return nil
		}
	}

	timeout := n.defaultTimeout
	if schema.TimeoutSeconds > 0 {
		timeout = time.Duration(schema.TimeoutSeconds) * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	invokeStarted := n.now()
	result, invokeErr := invoker(callCtx, args)
	n.metrics.RecordTimer("executor.invoke.duration", n.now().Sub(invokeStarted), "tool", step.ToolName)

	if invokeErr != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			invokeErr = workflowerrors.Wrap(workflowerrors.KindToolTimeout, "tool invocation timed out", invokeErr)
		}
		n.fail(state, step, invokeErr)
		return nil
	}

	completed := n.now()
	step.Status = model.StepCompleted
	step.CompletedAt = &completed
	step.ToolOutput = &model.ToolOutcome{Success: true, Data: result}
	step.Error = ""
	n.metrics.IncCounter("executor.step.completed", 1)
	n.advance(state, step)
	return nil
}

// advance records step's result and moves the cursor past it. It is only
// reached once step has terminated successfully, never on failure or
// suspension.
func (n *Node) advance(state *model.AgentState, step *model.TaskStep) {
	var result any
	if step.ToolOutput != nil {
		result = step.ToolOutput
	}
	state.StepResults = append(state.StepResults, model.StepResult{StepID: step.ID, StepTitle: step.Title, Result: result})
	state.CurrentStepIndex++
}

// fail applies the retry/terminal-failure envelope to step: retry_count is
// incremented and the step returns to pending while below MAX_RETRY_COUNT,
// otherwise the step and the whole AgentState are marked terminally failed.
// current_step_index is left untouched either way, so a subsequent Run
// invocation (after Supervisor reroutes to Executor, or never, once
// final_status is resolved) always re-selects the same step rather than
// silently skipping past it.
func (n *Node) fail(state *model.AgentState, step *model.TaskStep, cause error) {
	step.RetryCount++
	step.Error = cause.Error()
	n.metrics.IncCounter("executor.step.failed", 1, "tool", step.ToolName)

	if step.RetryCount < n.maxRetry {
		step.Status = model.StepPending
		return
	}
	step.Status = model.StepFailed
	state.ErrorInfo = &model.ErrorInfo{
		Message:     "step " + step.Title + " failed after " + strconv.Itoa(step.RetryCount) + " attempts: " + cause.Error(),
		Suggestions: []string{"inspect the tool arguments and retry the task"},
	}
	state.FinalStatus = model.FinalFailed
}

func hasRequiredConfig(schema toolregistry.Schema, args map[string]any) bool {
	return len(missingConfigKeys(schema, args)) == 0
}

func missingConfigKeys(schema toolregistry.Schema, args map[string]any) []string {
	required, _ := schema.ConfigSchema["required"].([]any)
	var missing []string
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := args[key]; !present {
			missing = append(missing, key)
		}
	}
	return missing
}
