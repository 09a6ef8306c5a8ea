package repository

import (
	"context"
	"errors"
	"fmt"

	"framium/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTaskNotFound is returned when a task does not exist or is not owned
// by the requesting user.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository defines methods for accessing generation tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, t *model.GenerationTask) error
	GetTask(ctx context.Context, id, userID string) (*model.GenerationTask, error)
	GetTaskByID(ctx context.Context, id string) (*model.GenerationTask, error)
	ListTasks(ctx context.Context, userID string, limit, offset int) ([]model.GenerationTask, error)
	DeleteTask(ctx context.Context, id, userID string) error
	UpdateTaskStatus(ctx context.Context, id, status string) error
	CompleteTask(ctx context.Context, id, result string) error
	FailTask(ctx context.Context, id string, errorDetails []byte) error
}

type taskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo creates a new TaskRepository.
func NewTaskRepo(pool *pgxpool.Pool) TaskRepository {
	return &taskRepo{pool: pool}
}

const taskColumns = `id, user_id, title, prompt, model, status, result, error_details, created_at, updated_at`

func scanTask(row pgx.Row) (*model.GenerationTask, error) {
	var t model.GenerationTask
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Prompt, &t.Model, &t.Status, &t.Result, &t.ErrorDetails, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *taskRepo) CreateTask(ctx context.Context, t *model.GenerationTask) error {
	const q = `
        INSERT INTO generation_tasks (id, user_id, title, prompt, model, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + taskColumns
	created, err := scanTask(r.pool.QueryRow(ctx, q, t.ID, t.UserID, t.Title, t.Prompt, t.Model, t.Status))
	if err != nil {
		return fmt.Errorf("creating task for user %s: %w", t.UserID, err)
	}
	*t = *created
	return nil
}

func (r *taskRepo) GetTask(ctx context.Context, id, userID string) (*model.GenerationTask, error) {
	const q = `SELECT ` + taskColumns + ` FROM generation_tasks WHERE id = $1 AND user_id = $2`
	t, err := scanTask(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}
	return t, nil
}

func (r *taskRepo) GetTaskByID(ctx context.Context, id string) (*model.GenerationTask, error) {
	const q = `SELECT ` + taskColumns + ` FROM generation_tasks WHERE id = $1`
	t, err := scanTask(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching task %s: %w", id, err)
	}
	return t, nil
}

func (r *taskRepo) ListTasks(ctx context.Context, userID string, limit, offset int) ([]model.GenerationTask, error) {
	const q = `
        SELECT ` + taskColumns + `
        FROM generation_tasks
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var tasks []model.GenerationTask
	for rows.Next() {
		var t model.GenerationTask
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Prompt, &t.Model, &t.Status, &t.Result, &t.ErrorDetails, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepo) DeleteTask(ctx context.Context, id, userID string) error {
	const q = `DELETE FROM generation_tasks WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *taskRepo) UpdateTaskStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE generation_tasks SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id, status); err != nil {
		return fmt.Errorf("updating task %s status: %w", id, err)
	}
	return nil
}

func (r *taskRepo) CompleteTask(ctx context.Context, id, result string) error {
	const q = `
        UPDATE generation_tasks
        SET status = $2, result = $3, error_details = NULL, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, model.TaskStatusCompleted, result); err != nil {
		return fmt.Errorf("completing task %s: %w", id, err)
	}
	return nil
}

func (r *taskRepo) FailTask(ctx context.Context, id string, errorDetails []byte) error {
	const q = `
        UPDATE generation_tasks
        SET status = $2, error_details = $3, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, model.TaskStatusFailed, errorDetails); err != nil {
		return fmt.Errorf("failing task %s: %w", id, err)
	}
	return nil
}
