package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/repository"

	"github.com/rs/zerolog"
)

// fakeTaskRepo stores tasks in a map keyed by task id.
type fakeTaskRepo struct {
	tasks map[string]*model.GenerationTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*model.GenerationTask)}
}

func (f *fakeTaskRepo) CreateTask(ctx context.Context, t *model.GenerationTask) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeTaskRepo) GetTask(ctx context.Context, id, userID string) (*model.GenerationTask, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeTaskRepo) GetTaskByID(ctx context.Context, id string) (*model.GenerationTask, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeTaskRepo) ListTasks(ctx context.Context, userID string, limit, offset int) ([]model.GenerationTask, error) {
	var out []model.GenerationTask
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) DeleteTask(ctx context.Context, id, userID string) error {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) UpdateTaskStatus(ctx context.Context, id, status string) error {
	f.tasks[id].Status = status
	return nil
}

func (f *fakeTaskRepo) CompleteTask(ctx context.Context, id, result string) error {
	t := f.tasks[id]
	t.Status = model.TaskStatusCompleted
	t.Result = &result
	return nil
}

func (f *fakeTaskRepo) FailTask(ctx context.Context, id string, errorDetails []byte) error {
	t := f.tasks[id]
	t.Status = model.TaskStatusFailed
	t.ErrorDetails = errorDetails
	return nil
}

// fakeQueue captures sent payloads per queue.
type fakeQueue struct {
	sent map[string][][]byte
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, queue string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][][]byte)
	}
	f.sent[queue] = append(f.sent[queue], payload)
	return nil
}

// stubChatService returns a canned completion result or error.
type stubChatService struct {
	result *CompletionResult
	err    error
	calls  []CompletionRequest
}

func (s *stubChatService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestTaskService(repo repository.TaskRepository, chat ChatService, queue QueuePublisher) TaskService {
	return NewTaskService(repo, chat, catalog.Default(), queue, "generation_queue", zerolog.Nop())
}

func TestCreateTaskEnqueues(t *testing.T) {
	repo := newFakeTaskRepo()
	queue := &fakeQueue{}
	svc := newTestTaskService(repo, &stubChatService{}, queue)

	task, err := svc.CreateTask(context.Background(), "u1", "landing page", "build a hero section", "openai/gpt-4o-mini")
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("task status = %q, want pending", task.Status)
	}
	if _, ok := repo.tasks[task.ID]; !ok {
		t.Error("task row was not stored")
	}

	msgs := queue.sent["generation_queue"]
	if len(msgs) != 1 {
		t.Fatalf("queue has %d messages, want 1", len(msgs))
	}
	var payload TaskQueueMessage
	if err := json.Unmarshal(msgs[0], &payload); err != nil {
		t.Fatalf("unmarshal queue payload: %v", err)
	}
	if payload.TaskID != task.ID {
		t.Errorf("queued task id = %q, want %q", payload.TaskID, task.ID)
	}
}

func TestCreateTaskUnknownModel(t *testing.T) {
	svc := newTestTaskService(newFakeTaskRepo(), &stubChatService{}, &fakeQueue{})
	if _, err := svc.CreateTask(context.Background(), "u1", "t", "p", "openai/gpt-99"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestProcessCompletesTask(t *testing.T) {
	repo := newFakeTaskRepo()
	repo.tasks["t1"] = &model.GenerationTask{
		ID: "t1", UserID: "u1", Prompt: "p", Model: "openai/gpt-4o-mini", Status: model.TaskStatusPending,
	}
	chat := &stubChatService{result: &CompletionResult{Text: "generated", TokensUsed: 10}}
	svc := newTestTaskService(repo, chat, &fakeQueue{})

	if err := svc.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	task := repo.tasks["t1"]
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("task status = %q, want completed", task.Status)
	}
	if task.Result == nil || *task.Result != "generated" {
		t.Errorf("task result = %v, want %q", task.Result, "generated")
	}
	if len(chat.calls) != 1 {
		t.Fatalf("chat service called %d times, want 1", len(chat.calls))
	}
	if chat.calls[0].Kind != model.KindTask {
		t.Errorf("completion kind = %q, want task", chat.calls[0].Kind)
	}
}

func TestProcessFailureMarksTaskFailed(t *testing.T) {
	repo := newFakeTaskRepo()
	repo.tasks["t1"] = &model.GenerationTask{
		ID: "t1", UserID: "u1", Prompt: "p", Model: "openai/gpt-4o-mini", Status: model.TaskStatusPending,
	}
	chat := &stubChatService{err: errors.New("provider down")}
	svc := newTestTaskService(repo, chat, &fakeQueue{})

	if err := svc.Process(context.Background(), "t1"); err == nil {
		t.Fatal("expected error from Process")
	}
	task := repo.tasks["t1"]
	if task.Status != model.TaskStatusFailed {
		t.Errorf("task status = %q, want failed", task.Status)
	}
	var details map[string]string
	if err := json.Unmarshal(task.ErrorDetails, &details); err != nil {
		t.Fatalf("error details are not JSON: %v", err)
	}
	if details["message"] == "" {
		t.Error("error details missing message")
	}
}

func TestProcessSkipsCompletedTask(t *testing.T) {
	repo := newFakeTaskRepo()
	result := "done earlier"
	repo.tasks["t1"] = &model.GenerationTask{
		ID: "t1", UserID: "u1", Status: model.TaskStatusCompleted, Result: &result,
	}
	chat := &stubChatService{result: &CompletionResult{Text: "again"}}
	svc := newTestTaskService(repo, chat, &fakeQueue{})

	if err := svc.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(chat.calls) != 0 {
		t.Errorf("chat service called %d times for completed task, want 0", len(chat.calls))
	}
	if *repo.tasks["t1"].Result != result {
		t.Error("completed task result was overwritten")
	}
}
