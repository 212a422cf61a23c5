package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/checkpoint"
	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/repository"
	repositoryinmem "github.com/planexec/planexec/repository/inmem"
	"github.com/planexec/planexec/stream"
	planexechttp "github.com/planexec/planexec/transport/http"
)

type fakeEngine struct {
	mu          sync.Mutex
	startResult *model.AgentState
	startErr    error
	getErr      error
	started     chan string
}

func (f *fakeEngine) Start(_ context.Context, threadID, _, _ string) (*model.AgentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started != nil {
		f.started <- threadID
	}
	return f.startResult, f.startErr
}
func (f *fakeEngine) Resume(context.Context, string, map[string]any) (*model.AgentState, error) {
	return f.startResult, f.startErr
}
func (f *fakeEngine) Get(context.Context, string) (*model.AgentState, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.startResult, nil
}

func TestCreateTaskPersistsTaskRecordWithoutStartingExecution(t *testing.T) {
	repo := repositoryinmem.New()
	eng := &fakeEngine{started: make(chan string, 1)}
	srv := planexechttp.New(eng, stream.New(4), repo, repo, nil)

	body, _ := json.Marshal(map[string]string{"thread_id": "c1", "user_input": "hi", "user_id": "u1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got repository.TaskRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, string(model.FinalPending), got.FinalStatus)

	select {
	case <-eng.started:
		t.Fatal("POST /v1/tasks must not start the workflow")
	default:
	}

	conv, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", conv.UserID)

	msgs, err := repo.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestCreateTaskMissingFieldsReturns400(t *testing.T) {
	repo := repositoryinmem.New()
	srv := planexechttp.New(&fakeEngine{}, stream.New(4), repo, repo, nil)
	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskNotFoundReturns404(t *testing.T) {
	repo := repositoryinmem.New()
	srv := planexechttp.New(&fakeEngine{getErr: checkpoint.ErrNotFound}, stream.New(4), repo, repo, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/missing", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamStartsWorkflowOnceWhenNoCheckpointExists(t *testing.T) {
	repo := repositoryinmem.New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, repository.Conversation{
		ID: "c1", UserID: "u1", Status: repository.ConversationActive, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repo.CreateTask(ctx, repository.TaskRecord{
		ID: "t1", ConversationID: "c1", UserInput: "hi", FinalStatus: string(model.FinalPending), CreatedAt: now,
	}))

	state := model.NewAgentState("hi", "c1", "u1", now)
	state.FinalStatus = model.FinalSuccess
	eng := &fakeEngine{startResult: state, getErr: checkpoint.ErrNotFound, started: make(chan string, 1)}
	srv := planexechttp.New(eng, stream.New(4), repo, repo, nil)

	reqCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/c1/stream", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	select {
	case threadID := <-eng.started:
		assert.Equal(t, "c1", threadID)
	default:
		t.Fatal("engine.Start was never called for a thread with no checkpoint")
	}

	deadline := time.Now().Add(time.Second)
	var task repository.TaskRecord
	for time.Now().Before(deadline) {
		var err error
		task, err = repo.GetTask(context.Background(), "t1")
		require.NoError(t, err)
		if task.FinalStatus == string(model.FinalSuccess) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, string(model.FinalSuccess), task.FinalStatus)
}
