package service

import (
	"context"
	"encoding/json"
	"fmt"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueuePublisher pushes a payload into a named queue. Satisfied by
// *pgmq.Client.
type QueuePublisher interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

// TaskQueueMessage is the pgmq payload for a queued generation task.
type TaskQueueMessage struct {
	TaskID string `json:"task_id"`
}

// TaskService manages queued generation tasks. Creation enqueues the task;
// Process (called by the worker) runs it through the same completion
// pipeline as interactive chat, so tasks are metered and billed
// identically.
type TaskService interface {
	CreateTask(ctx context.Context, userID, title, prompt, modelID string) (*model.GenerationTask, error)
	GetTask(ctx context.Context, id, userID string) (*model.GenerationTask, error)
	ListTasks(ctx context.Context, userID string, limit, offset int) ([]model.GenerationTask, error)
	DeleteTask(ctx context.Context, id, userID string) error
	Process(ctx context.Context, taskID string) error
}

type taskService struct {
	taskRepo  repository.TaskRepository
	chatSvc   ChatService
	catalog   *catalog.Catalog
	queue     QueuePublisher
	queueName string
	logger    zerolog.Logger
}

// NewTaskService creates a new TaskService with a scoped logger.
func NewTaskService(
	taskRepo repository.TaskRepository,
	chatSvc ChatService,
	cat *catalog.Catalog,
	queue QueuePublisher,
	queueName string,
	logger zerolog.Logger,
) TaskService {
	return &taskService{
		taskRepo:  taskRepo,
		chatSvc:   chatSvc,
		catalog:   cat,
		queue:     queue,
		queueName: queueName,
		logger:    logger.With().Str("service", "TaskService").Logger(),
	}
}

func (s *taskService) CreateTask(ctx context.Context, userID, title, prompt, modelID string) (*model.GenerationTask, error) {
	if _, known := s.catalog.MinTierFor(modelID); !known {
		return nil, fmt.Errorf("unknown model %q", modelID)
	}

	t := &model.GenerationTask{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Prompt: prompt,
		Model:  modelID,
		Status: model.TaskStatusPending,
	}
	if err := s.taskRepo.CreateTask(ctx, t); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create task")
		return nil, fmt.Errorf("creating task: %w", err)
	}

	payload, err := json.Marshal(TaskQueueMessage{TaskID: t.ID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task message: %w", err)
	}
	if err := s.queue.Send(ctx, s.queueName, payload); err != nil {
		s.logger.Error().Err(err).Str("task_id", t.ID).Msg("Failed to enqueue task")
		return nil, fmt.Errorf("enqueuing task: %w", err)
	}

	return t, nil
}

func (s *taskService) GetTask(ctx context.Context, id, userID string) (*model.GenerationTask, error) {
	return s.taskRepo.GetTask(ctx, id, userID)
}

func (s *taskService) ListTasks(ctx context.Context, userID string, limit, offset int) ([]model.GenerationTask, error) {
	tasks, err := s.taskRepo.ListTasks(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list tasks")
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (s *taskService) DeleteTask(ctx context.Context, id, userID string) error {
	if err := s.taskRepo.DeleteTask(ctx, id, userID); err != nil {
		if err != repository.ErrTaskNotFound {
			s.logger.Error().Err(err).Str("task_id", id).Msg("Failed to delete task")
		}
		return err
	}
	return nil
}

// Process runs one queued task end to end. Failures are written to the
// task row; the returned error tells the worker whether the pgmq message
// should be retried or dead-lettered.
func (s *taskService) Process(ctx context.Context, taskID string) error {
	t, err := s.taskRepo.GetTaskByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}
	if t.Status == model.TaskStatusCompleted {
		// Message redelivered after a completed run; nothing to do.
		return nil
	}

	if err := s.taskRepo.UpdateTaskStatus(ctx, taskID, model.TaskStatusRunning); err != nil {
		return err
	}

	result, err := s.chatSvc.Complete(ctx, CompletionRequest{
		UserID: t.UserID,
		Model:  t.Model,
		Prompt: t.Prompt,
		Kind:   model.KindTask,
	})
	if err != nil {
		details, _ := json.Marshal(map[string]string{
			"stage":   "generation",
			"message": err.Error(),
		})
		if failErr := s.taskRepo.FailTask(ctx, taskID, details); failErr != nil {
			s.logger.Error().Err(failErr).Str("task_id", taskID).Msg("Failed to mark task as failed")
		}
		return fmt.Errorf("running task %s: %w", taskID, err)
	}

	if err := s.taskRepo.CompleteTask(ctx, taskID, result.Text); err != nil {
		return fmt.Errorf("completing task %s: %w", taskID, err)
	}
	s.logger.Info().
		Str("task_id", taskID).
		Int64("tokens", result.TokensUsed).
		Float64("cost_usd", result.CostUSD).
		Msg("Task completed")
	return nil
}
