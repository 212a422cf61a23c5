// Package supervisor implements the pure routing function that decides,
// given the current AgentState, which node runs next (spec §3 Supervisor).
// It holds no state of its own and calls out to nothing: the same AgentState
// always routes to the same Next, which is what makes the engine's
// checkpoint/resume cycle (spec §5) deterministic.
package supervisor

import "github.com/planexec/planexec/model"

// Node names a workflow node the Supervisor can route to.
type Node string

const (
	NodePlanner   Node = "planner"
	NodeExecutor  Node = "executor"
	NodeValidator Node = "validator"
	NodeEnd       Node = "end"
)

// Route inspects state and returns the next node to run. It never mutates
// state and never performs I/O; every decision is a pure function of the
// fields the spec names.
//
// Routing rules (spec §4.5):
//  1. FinalStatus already resolved (success or failed) -> End.
//  2. A step is suspended waiting on user input -> End (the engine halts the
//     loop until Resume delivers the answer and clears PendingUserInput).
//  3. No plan yet (TodoList is empty) -> Planner.
//  4. CurrentStepIndex < len(TodoList) -> Executor.
//  5. CurrentStepIndex >= len(TodoList) and FinalStatus is still pending ->
//     Validator.
//  6. Default -> End.
//
// Rules 4/5 key off CurrentStepIndex alone, never step.Status: it is the
// Executor's sole authoritative cursor (spec §4.3 step 2), so a terminally
// failed non-last step halts the thread via rule 1 the moment the Executor
// sets FinalStatus, rather than Route independently re-deriving "resolved"
// by scanning every step's status.
func Route(state *model.AgentState) Node {
	if state == nil {
		return NodeEnd
	}
	if state.FinalStatus == model.FinalSuccess || state.FinalStatus == model.FinalFailed {
		return NodeEnd
	}
	if state.PendingUserInput != nil {
		return NodeEnd
	}
	if len(state.TodoList) == 0 {
		return NodePlanner
	}
	if state.CurrentStepIndex < len(state.TodoList) {
		return NodeExecutor
	}
	if state.FinalStatus != model.FinalSuccess {
		return NodeValidator
	}
	return NodeEnd
}
