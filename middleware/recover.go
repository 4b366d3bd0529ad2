package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// Recover returns middleware that recovers from panics further down
// the chain. The Job contract forbids SafeRun from panicking, so this
// is a backstop against foreign Job implementations; a recovered panic
// is logged with a stack trace and reported as RunResultFailRunLimit.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, h *jobqueue.JobHolder, next Handler) (res jobqueue.RunResult) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job execution panicked",
					slog.String("job_id", h.ID()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				res = jobqueue.RunResultFailRunLimit
			}
		}()
		return next(ctx)
	}
}
