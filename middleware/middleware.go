// Package middleware provides composable wrappers around holder
// execution. A Middleware observes each attempt and its RunResult; the
// chain runs synchronously on the worker goroutine that executes the
// holder.
//
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
//	// logging → recover → SafeRun
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware

import (
	"context"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// Handler is the terminal function that executes one attempt and
// reports its outcome.
type Handler func(ctx context.Context) jobqueue.RunResult

// Middleware wraps a Handler with cross-cutting logic around a single
// execution attempt of the given holder.
type Middleware func(ctx context.Context, h *jobqueue.JobHolder, next Handler) jobqueue.RunResult

// Chain composes middleware into a single Middleware. Chain() with no
// arguments returns a pass-through.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, h *jobqueue.JobHolder, next Handler) jobqueue.RunResult {
		// Build the chain from the end backwards.
		wrapped := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			inner := wrapped
			wrapped = func(ctx context.Context) jobqueue.RunResult {
				return mw(ctx, h, inner)
			}
		}
		return wrapped(ctx)
	}
}
