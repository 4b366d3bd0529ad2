package jobqueue

// RunResult is the outcome of a single execution attempt. The set is
// closed: a Job's SafeRun must report exactly one of these codes and
// may never panic. The manager interprets the code to decide between
// discarding the holder and sending it back through the retry loop.
type RunResult int

const (
	// RunResultSuccess means the attempt completed without error.
	// Terminal: the holder is marked successful and discarded.
	RunResultSuccess RunResult = 1

	// RunResultFailRunLimit means the attempt failed and no further
	// retries are allowed, either because the retry limit was reached
	// or because the job's retry filter vetoed another attempt.
	// Terminal: the holder is discarded and the failure reported.
	RunResultFailRunLimit RunResult = 2

	// RunResultFailForCancel means the attempt failed after the job had
	// been cancelled mid-execution. Terminal: the cancellation callback
	// fires and the holder is discarded.
	RunResultFailForCancel RunResult = 3

	// RunResultTryAgain means the attempt hit a recoverable error and
	// requests a retry. The manager increments the run count, consults
	// the RetryConstraint, and re-enqueues with a fresh insertion order.
	RunResultTryAgain RunResult = 4

	// RunResultFailShouldReRun means the job-level completion predicate
	// vetoed completion. Re-enqueued with the same semantics as
	// RunResultTryAgain unless the RetryConstraint says otherwise.
	RunResultFailShouldReRun RunResult = 5
)

// Terminal reports whether the result ends the holder's lifecycle.
func (r RunResult) Terminal() bool {
	switch r {
	case RunResultSuccess, RunResultFailRunLimit, RunResultFailForCancel:
		return true
	default:
		return false
	}
}

// Retryable reports whether the result sends the holder back through
// the manager's retry loop.
func (r RunResult) Retryable() bool {
	return r == RunResultTryAgain || r == RunResultFailShouldReRun
}

// String returns the wire-stable name of the result code.
func (r RunResult) String() string {
	switch r {
	case RunResultSuccess:
		return "success"
	case RunResultFailRunLimit:
		return "fail_run_limit"
	case RunResultFailForCancel:
		return "fail_for_cancel"
	case RunResultTryAgain:
		return "try_again"
	case RunResultFailShouldReRun:
		return "fail_should_re_run"
	default:
		return "unknown"
	}
}
