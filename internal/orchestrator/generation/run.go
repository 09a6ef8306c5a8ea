package generation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"framium/internal/config"
	"framium/internal/pgmq"
	"framium/internal/service"

	"github.com/rs/zerolog"
)

// Run starts the generation worker. It drains the generation queue one
// message at a time, runs each task through the completion pipeline, and
// dead-letters jobs that exhaust their retries.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, client *pgmq.Client, taskSvc service.TaskService) error {
	queue := cfg.GenerationQueueName
	logger.Info().Str("queue", queue).Msg("Starting generation worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down generation worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.GenerationPollTimeoutSec, cfg.GenerationPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Shutting down generation worker")
				return nil
			}
			logger.Error().Err(err).Msg("Error reading generation queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		msg := msgs[0]
		logger.Info().Int64("msg_id", msg.ID).Msg("Received generation job")

		var payload service.TaskQueueMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal generation payload; deleting message")
			client.Delete(ctx, queue, []int64{msg.ID})
			continue
		}

		// Process with retry/backoff. Rejections from the pipeline itself
		// (quota, plan) will not change on retry, so they fail straight to
		// the DLQ.
		backoff := time.Duration(cfg.GenerationBackoffInitialSec) * time.Second
		var runErr error
		for attempt := 1; attempt <= cfg.GenerationMaxRetries; attempt++ {
			runErr = taskSvc.Process(ctx, payload.TaskID)
			if runErr == nil || !retryable(runErr) {
				break
			}
			logger.Error().Err(runErr).
				Str("task_id", payload.TaskID).
				Int("attempt", attempt).
				Msg("Generation attempt failed, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if ceiling := time.Duration(cfg.GenerationBackoffMaxSec) * time.Second; backoff > ceiling {
				backoff = ceiling
			}
		}

		if runErr != nil {
			dlq := cfg.GenerationDeadLetterQueueName
			if msgBytes, err := json.Marshal(payload); err == nil {
				if err := client.Send(ctx, dlq, msgBytes); err != nil {
					logger.Error().Err(err).Str("dlq", dlq).Msg("Failed to send message to dead-letter queue")
				}
			}
			logger.Warn().
				Str("task_id", payload.TaskID).
				Err(runErr).
				Msg("Generation job failed; moving to DLQ")
		}

		// Acknowledge the message either way; the task row holds the outcome.
		if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
			logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting generation message")
		}
	}
}

// retryable reports whether a failed attempt is worth repeating. Quota and
// plan rejections are deterministic for the same task, so retries would
// only burn provider calls.
func retryable(err error) bool {
	var planErr *service.ModelNotAllowedError
	switch {
	case errors.Is(err, service.ErrQuotaExceeded),
		errors.Is(err, service.ErrUserNotFound),
		errors.As(err, &planErr):
		return false
	}
	return true
}
