// Package model defines the data shapes threaded through the workflow:
// task steps, the parsed planner intent, and the checkpointed agent state.
// None of these types carry behavior beyond small invariant helpers — the
// nodes in planner, executor, validator and supervisor own the logic that
// produces and consumes them.
package model

import "time"

// StepStatus is the lifecycle state of a single Task Step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// FinalStatus is the terminal (or pending) outcome of an Agent State.
type FinalStatus string

const (
	FinalPending FinalStatus = "pending"
	FinalSuccess FinalStatus = "success"
	FinalFailed  FinalStatus = "failed"
)

// AgentRole names the node that most recently touched the state.
type AgentRole string

const (
	RoleSupervisor AgentRole = "supervisor"
	RolePlanner    AgentRole = "planner"
	RoleExecutor   AgentRole = "executor"
	RoleValidator  AgentRole = "validator"
)

const (
	// MaxTaskSteps bounds the length of a Planner-produced todo list.
	MaxTaskSteps = 20
	// MaxRetryCount bounds per-step retry attempts before terminal failure.
	MaxRetryCount = 3
	// DefaultToolTimeoutSeconds is used when a Tool Schema omits one.
	DefaultToolTimeoutSeconds = 60
	// MaxContextTokens is informational; no node enforces it directly.
	MaxContextTokens = 8000
)

// TaskStep is one atomic unit of work in a todo list.
type TaskStep struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      StepStatus     `json:"status"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolInput   map[string]any `json:"tool_input,omitempty"`
	ToolOutput  *ToolOutcome   `json:"tool_output,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ToolOutcome wraps a successful tool invocation's result, matching the
// `{success: true, data: ...}` envelope the Executor populates.
type ToolOutcome struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ParsedIntent is the Planner's interpretation of the user request.
type ParsedIntent struct {
	Goal          string         `json:"goal"`
	RequiredTools []string       `json:"required_tools,omitempty"`
	RequiredInfo  map[string]any `json:"required_info,omitempty"`
	Confidence    float64        `json:"confidence"`
}

// StepResult is one entry appended to AgentState.StepResults after a step
// completes (whether or not it invoked a tool).
type StepResult struct {
	StepID    string `json:"step_id"`
	StepTitle string `json:"step_title"`
	Result    any    `json:"result,omitempty"`
}

// PendingUserInput records a suspended step awaiting human-provided
// configuration before the Executor can retry it.
type PendingUserInput struct {
	StepID        string   `json:"step_id"`
	ToolName      string   `json:"tool_name"`
	MissingParams []string `json:"missing_params,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// ErrorInfo is the human-readable terminal failure surfaced to clients.
type ErrorInfo struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// AgentState is the single value threaded through the workflow and the unit
// checkpointed by the State Store. It must round-trip through JSON
// marshal/unmarshal without loss (checkpoint/redis stores it as a JSON blob;
// see checkpoint/redis/store_test.go).
type AgentState struct {
	// Inputs
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`

	// Plan
	ParsedIntent     *ParsedIntent `json:"parsed_intent,omitempty"`
	TodoList         []TaskStep    `json:"todo_list,omitempty"`
	CurrentStepIndex int           `json:"current_step_index"`

	// Execution
	StepResults  []StepResult   `json:"step_results,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	RetrievedDocs []string      `json:"retrieved_docs,omitempty"`

	// HITL
	PendingUserInput  *PendingUserInput `json:"pending_user_input,omitempty"`
	UserProvidedConfig map[string]any   `json:"user_provided_config,omitempty"`

	// Status
	CurrentAgent AgentRole   `json:"current_agent"`
	FinalStatus  FinalStatus `json:"final_status"`
	ErrorInfo    *ErrorInfo  `json:"error_info,omitempty"`

	// Metadata
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// TokenCount and CompressedHistory are reserved for a future
	// history-compaction pass; no node populates them today.
	TokenCount        int    `json:"token_count"`
	CompressedHistory string `json:"compressed_history,omitempty"`
}

// NewAgentState constructs the initial state for a fresh thread.
func NewAgentState(userInput, conversationID, userID string, now time.Time) *AgentState {
	return &AgentState{
		UserInput:        userInput,
		ConversationID:   conversationID,
		UserID:           userID,
		CurrentStepIndex: 0,
		FinalStatus:      FinalPending,
		CurrentAgent:     RoleSupervisor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep-enough copy of the state for safe concurrent reads
// (e.g. handing a snapshot to the Stream Dispatcher while the engine
// continues mutating its own copy).
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	out := *s
	if s.ParsedIntent != nil {
		pi := *s.ParsedIntent
		out.ParsedIntent = &pi
	}
	out.TodoList = append([]TaskStep(nil), s.TodoList...)
	out.StepResults = append([]StepResult(nil), s.StepResults...)
	out.RetrievedDocs = append([]string(nil), s.RetrievedDocs...)
	if s.PendingUserInput != nil {
		p := *s.PendingUserInput
		out.PendingUserInput = &p
	}
	if s.ErrorInfo != nil {
		e := *s.ErrorInfo
		out.ErrorInfo = &e
	}
	out.Context = cloneAnyMap(s.Context)
	out.UserProvidedConfig = cloneAnyMap(s.UserProvidedConfig)
	return &out
}

func cloneAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CurrentStep returns the step at CurrentStepIndex, or nil when out of range.
func (s *AgentState) CurrentStep() *TaskStep {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.TodoList) {
		return nil
	}
	return &s.TodoList[s.CurrentStepIndex]
}

// Validate checks the invariants spec.md §3 and §8 require of any reachable
// state. It is used by tests and may be called defensively by the engine
// after each node invocation.
func (s *AgentState) Validate() error {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex > len(s.TodoList) {
		return errInvariant("current_step_index out of range")
	}
	if len(s.TodoList) > MaxTaskSteps {
		return errInvariant("todo_list exceeds MAX_TASK_STEPS")
	}
	running := 0
	for _, step := range s.TodoList {
		if step.RetryCount > MaxRetryCount {
			return errInvariant("step retry_count exceeds MAX_RETRY_COUNT")
		}
		if step.Status == StepRunning {
			running++
		}
	}
	if running > 1 {
		return errInvariant("more than one step is running")
	}
	if s.FinalStatus == FinalSuccess {
		for _, step := range s.TodoList {
			if step.Status != StepCompleted {
				return errInvariant("final_status success requires all steps completed")
			}
		}
	}
	return nil
}

type invariantError string

func (e invariantError) Error() string { return string(e) }

func errInvariant(msg string) error { return invariantError(msg) }
