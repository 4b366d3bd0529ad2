package middleware

import (
	"context"
	"log/slog"
	"time"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// Logging returns middleware that logs attempt start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, h *jobqueue.JobHolder, next Handler) jobqueue.RunResult {
		logger.Info("job attempt started",
			slog.String("job_id", h.ID()),
			slog.Int("priority", h.Priority()),
			slog.Int("run_count", h.RunCount()),
			slog.String("group_id", h.GroupID()),
		)

		start := time.Now()
		res := next(ctx)
		elapsed := time.Since(start)

		switch {
		case res == jobqueue.RunResultSuccess:
			logger.Info("job attempt succeeded",
				slog.String("job_id", h.ID()),
				slog.Duration("elapsed", elapsed),
			)
		case res.Retryable():
			logger.Warn("job attempt will retry",
				slog.String("job_id", h.ID()),
				slog.String("result", res.String()),
				slog.Int("run_count", h.RunCount()),
				slog.Duration("elapsed", elapsed),
			)
		default:
			logger.Error("job attempt failed",
				slog.String("job_id", h.ID()),
				slog.String("result", res.String()),
				slog.Duration("elapsed", elapsed),
			)
		}
		return res
	}
}
