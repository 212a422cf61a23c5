// Package http implements the thin HTTP/SSE surface realizing the
// illustrative endpoints in spec §6: POST a new task, GET its current
// state, POST a resume with user-provided config, and stream state updates
// over Server-Sent Events. It intentionally skips the teacher's full Goa
// DSL/codegen pipeline (see DESIGN.md "dropped dependencies") in favor of a
// small net/http ServeMux, since the spec names no transport-level
// contract beyond these four operations.
//
// POST /v1/tasks only persists the repository-durable Conversation/Task/
// Message records (spec §3 Lifecycles); it never starts the workflow. The
// streaming endpoint is what calls Engine.Start, the first time a client
// subscribes to a thread with no existing checkpoint — see SPEC_FULL.md's
// "POST /tasks vs execution" decision.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/planexec/planexec/checkpoint"
	"github.com/planexec/planexec/engine"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/repository"
	"github.com/planexec/planexec/stream"
	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/workflowerrors"
)

// Server wires the Workflow Engine, Stream Dispatcher and Repositories onto
// HTTP handlers.
type Server struct {
	eng           engine.Engine
	disp          *stream.Dispatcher
	conversations repository.ConversationRepository
	tasks         repository.TaskRepository
	logger        telemetry.Logger
	mux           *http.ServeMux
}

// New constructs a Server and registers its routes.
func New(eng engine.Engine, disp *stream.Dispatcher, conversations repository.ConversationRepository, tasks repository.TaskRepository, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	s := &Server{eng: eng, disp: disp, conversations: conversations, tasks: tasks, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /v1/tasks/{thread_id}", s.handleGetTask)
	s.mux.HandleFunc("POST /v1/tasks/{thread_id}/resume", s.handleResumeTask)
	s.mux.HandleFunc("GET /v1/tasks/{thread_id}/stream", s.handleStreamTask)
}

type createTaskRequest struct {
	ThreadID  string `json:"thread_id"`
	UserInput string `json:"user_input"`
	UserID    string `json:"user_id"`
}

// handleCreateTask persists a Conversation, a TaskRecord and the user's
// Message without starting execution (spec §3 Lifecycles: "a Task is
// created per user utterance and updated after every node transition"). The
// workflow itself begins when the client opens the streaming endpoint.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ThreadID == "" || req.UserInput == "" {
		writeError(w, http.StatusBadRequest, errors.New("thread_id and user_input are required"))
		return
	}

	ctx := r.Context()
	now := time.Now()
	if err := s.conversations.Create(ctx, repository.Conversation{
		ID:        req.ThreadID,
		UserID:    req.UserID,
		Status:    repository.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	task := repository.TaskRecord{
		ID:             uuid.NewString(),
		ConversationID: req.ThreadID,
		UserInput:      req.UserInput,
		FinalStatus:    string(model.FinalPending),
		CreatedAt:      now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.tasks.AppendMessage(ctx, repository.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ThreadID,
		Role:           "user",
		Content:        req.UserInput,
		CreatedAt:      now,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	state, err := s.eng.Get(r.Context(), threadID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type resumeTaskRequest struct {
	UserProvidedConfig map[string]any `json:"user_provided_config"`
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	var req resumeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := r.Context()
	state, err := s.eng.Resume(ctx, threadID, req.UserProvidedConfig)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if taskID, ok := s.latestTaskID(ctx, threadID); ok {
		s.persistCompletion(ctx, taskID, state)
	}
	writeJSON(w, http.StatusOK, state)
}

// handleStreamTask serves spec §6's streaming endpoint over Server-Sent
// Events, relaying stream.Event values from the Dispatcher until the client
// disconnects. The first subscriber for a thread with no existing
// checkpoint triggers Engine.Start in the background, so POST /v1/tasks
// never blocks an HTTP response on the full workflow loop.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.disp.Subscribe(threadID)
	defer sub.Close()

	if _, err := s.eng.Get(r.Context(), threadID); errors.Is(err, checkpoint.ErrNotFound) {
		s.startWorkflowAsync(threadID)
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error(ctx, "failed to marshal stream event", "error", err.Error())
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Type) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := w.Write([]byte("event: ping\ndata: {}\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// startWorkflowAsync runs Engine.Start in a background goroutine, detached
// from the request that triggered it, and persists the resulting
// completion once the loop halts.
func (s *Server) startWorkflowAsync(threadID string) {
	go func() {
		ctx := context.Background()
		conv, err := s.conversations.Get(ctx, threadID)
		if err != nil {
			s.logger.Error(ctx, "failed to load conversation before starting workflow", "thread_id", threadID, "error", err.Error())
			return
		}
		taskID, ok := s.latestTaskID(ctx, threadID)
		if !ok {
			s.logger.Error(ctx, "no task record found before starting workflow", "thread_id", threadID)
			return
		}
		task, err := s.tasks.GetTask(ctx, taskID)
		if err != nil {
			s.logger.Error(ctx, "failed to load task before starting workflow", "thread_id", threadID, "error", err.Error())
			return
		}

		state, err := s.eng.Start(ctx, threadID, task.UserInput, conv.UserID)
		if err != nil {
			s.logger.Error(ctx, "workflow start failed", "thread_id", threadID, "error", err.Error())
			if completeErr := s.tasks.CompleteTask(ctx, task.ID, string(model.FinalFailed), time.Now()); completeErr != nil {
				s.logger.Error(ctx, "failed to persist task completion after start failure", "task_id", task.ID, "error", completeErr.Error())
			}
			return
		}
		s.persistCompletion(ctx, task.ID, state)
	}()
}

// latestTaskID returns the most recently created TaskRecord for
// conversationID. ListTasksByConversation's in-memory backend iterates a Go
// map, so callers needing "the latest task" must sort explicitly rather
// than trust return order.
func (s *Server) latestTaskID(ctx context.Context, conversationID string) (string, bool) {
	tasks, err := s.tasks.ListTasksByConversation(ctx, conversationID)
	if err != nil || len(tasks) == 0 {
		return "", false
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks[len(tasks)-1].ID, true
}

func (s *Server) persistCompletion(ctx context.Context, taskID string, state *model.AgentState) {
	if state == nil || state.FinalStatus == model.FinalPending {
		return
	}
	if err := s.tasks.CompleteTask(ctx, taskID, string(state.FinalStatus), time.Now()); err != nil {
		s.logger.Error(ctx, "failed to persist task completion", "task_id", taskID, "error", err.Error())
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkpoint.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if workflowerrors.KindOf(err) == workflowerrors.KindThreadNotFound {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
