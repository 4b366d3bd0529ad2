package jobqueue

import (
	"fmt"
	"sync/atomic"

	"github.com/nnikos123/android-priority-jobqueue/id"
)

// Job is the unit of work wrapped by a JobHolder. Implementations carry
// the business logic; the holder carries ordering and runtime metadata.
//
// SafeRun is the non-throwing execution wrapper: it must catch every
// failure inside the job and translate it to a RunResult. The holder
// performs no translation of its own; it is a pure pass-through.
type Job interface {
	// ID returns a stable, non-empty identifier. It is read at holder
	// construction and becomes the holder's sole basis of equality.
	ID() string

	// RequiresNetwork reports whether the job needs connectivity. Read
	// once at holder construction and cached; never re-read afterward.
	RequiresNetwork() bool

	// Tags returns the job's tag set, or nil. Copied read-only into the
	// holder at construction.
	Tags() []string

	// Priority returns the job's own priority field. Kept synchronized
	// with the holder by JobHolder.SetPriority.
	Priority() int

	// SetPriority sets the job's own priority field. Called by the
	// holder at every priority mutation, never by external code.
	SetPriority(priority int)

	// MarkCancelled sets the job's cancellation flag. Cancellation is
	// cooperative: SafeRun is expected to observe the flag and return
	// RunResultFailForCancel.
	MarkCancelled()

	// OnCancel is the cancellation notification hook. The holder
	// guarantees it fires at most once.
	OnCancel()

	// RetryConstraint returns the job's retry policy, or nil.
	RetryConstraint() *RetryConstraint

	// AttachHost injects the host execution context (platform or
	// environment handle). Set once before execution.
	AttachHost(host any)

	// SafeRun executes the job for the given attempt count and returns
	// a RunResult. It must never panic.
	SafeRun(h *JobHolder, attempt int) RunResult
}

// PersistentJob is implemented by jobs that can be serialized for
// durability. TypeName keys the decoder in a Registry; Payload is the
// opaque serialized form handed back to the decoder on recovery.
type PersistentJob interface {
	Job
	TypeName() string
	Payload() ([]byte, error)
}

// RunFunc is the business logic of a BaseJob. The attempt count starts
// at 1 for the first run.
type RunFunc func(attempt int) error

// BaseJob is a ready-made Job implementation around a RunFunc. It maps
// run outcomes to the RunResult protocol: a nil error is a success
// unless the completion filter vetoes it, an error while cancelled is
// FailForCancel, and an error otherwise retries until the retry limit
// or the retry filter stops it.
type BaseJob struct {
	id              string
	requiresNetwork bool
	tags            []string
	retryLimit      int
	constraint      *RetryConstraint

	run              RunFunc
	retryFilter      func(attempt int, err error) bool
	completionFilter func(attempt int) bool
	onCancel         func()

	typeName string
	payload  []byte

	priority  atomic.Int64
	cancelled atomic.Bool
	host      atomic.Value
}

// JobOption configures a BaseJob.
type JobOption func(*BaseJob)

// WithID sets an explicit job identifier. Default is a generated
// "job"-prefixed TypeID.
func WithID(jobID string) JobOption {
	return func(b *BaseJob) { b.id = jobID }
}

// WithTags sets the job's tag set.
func WithTags(tags ...string) JobOption {
	return func(b *BaseJob) { b.tags = tags }
}

// WithRequiresNetwork marks the job as needing connectivity.
func WithRequiresNetwork(v bool) JobOption {
	return func(b *BaseJob) { b.requiresNetwork = v }
}

// WithRetryLimit caps the number of attempts. Once the attempt count
// reaches the limit, a failing run reports RunResultFailRunLimit.
// Zero means unlimited.
func WithRetryLimit(n int) JobOption {
	return func(b *BaseJob) { b.retryLimit = n }
}

// WithRetryConstraint sets the retry policy the manager consults on a
// retryable outcome.
func WithRetryConstraint(c *RetryConstraint) JobOption {
	return func(b *BaseJob) { b.constraint = c }
}

// WithRetryFilter sets the error-path predicate. Returning false stops
// further attempts (RunResultFailRunLimit).
func WithRetryFilter(f func(attempt int, err error) bool) JobOption {
	return func(b *BaseJob) { b.retryFilter = f }
}

// WithCompletionFilter sets the success-path predicate. Returning false
// vetoes completion (RunResultFailShouldReRun).
func WithCompletionFilter(f func(attempt int) bool) JobOption {
	return func(b *BaseJob) { b.completionFilter = f }
}

// WithCancelFunc sets the callback invoked by OnCancel.
func WithCancelFunc(f func()) JobOption {
	return func(b *BaseJob) { b.onCancel = f }
}

// WithPersistence makes the job serializable: typeName keys the decoder
// in a Registry and payload is the serialized form stored alongside the
// holder's metadata.
func WithPersistence(typeName string, payload []byte) JobOption {
	return func(b *BaseJob) {
		b.typeName = typeName
		b.payload = payload
	}
}

// NewJob creates a BaseJob around the given run function.
func NewJob(run RunFunc, opts ...JobOption) *BaseJob {
	b := &BaseJob{run: run}
	for _, opt := range opts {
		opt(b)
	}
	if b.id == "" {
		b.id = id.NewJobID().String()
	}
	return b
}

// ID returns the job's stable identifier.
func (b *BaseJob) ID() string { return b.id }

// RequiresNetwork reports whether the job needs connectivity.
func (b *BaseJob) RequiresNetwork() bool { return b.requiresNetwork }

// Tags returns the job's tag set, or nil.
func (b *BaseJob) Tags() []string { return b.tags }

// Priority returns the job's own priority field.
func (b *BaseJob) Priority() int { return int(b.priority.Load()) }

// SetPriority sets the job's own priority field.
func (b *BaseJob) SetPriority(priority int) { b.priority.Store(int64(priority)) }

// MarkCancelled sets the cancellation flag. SafeRun observes it
// cooperatively on the next failure.
func (b *BaseJob) MarkCancelled() { b.cancelled.Store(true) }

// IsCancelled reports whether the job has been cancelled.
func (b *BaseJob) IsCancelled() bool { return b.cancelled.Load() }

// OnCancel invokes the cancellation callback, if any.
func (b *BaseJob) OnCancel() {
	if b.onCancel != nil {
		b.onCancel()
	}
}

// RetryConstraint returns the job's retry policy, or nil.
func (b *BaseJob) RetryConstraint() *RetryConstraint { return b.constraint }

// AttachHost injects the host execution context.
func (b *BaseJob) AttachHost(host any) { b.host.Store(host) }

// Host returns the injected host execution context, or nil.
func (b *BaseJob) Host() any { return b.host.Load() }

// TypeName returns the decoder key set via WithPersistence.
func (b *BaseJob) TypeName() string { return b.typeName }

// Payload returns the serialized form set via WithPersistence.
func (b *BaseJob) Payload() ([]byte, error) { return b.payload, nil }

// SafeRun executes the run function and maps the outcome to the
// RunResult protocol. Panics are recovered and treated as errors.
func (b *BaseJob) SafeRun(_ *JobHolder, attempt int) RunResult {
	err := b.safeCall(attempt)

	if err == nil {
		if b.completionFilter != nil && !b.completionFilter(attempt) {
			return RunResultFailShouldReRun
		}
		return RunResultSuccess
	}

	if b.cancelled.Load() {
		return RunResultFailForCancel
	}
	if b.retryLimit > 0 && attempt >= b.retryLimit {
		return RunResultFailRunLimit
	}
	if b.retryFilter != nil && !b.retryFilter(attempt, err) {
		return RunResultFailRunLimit
	}
	return RunResultTryAgain
}

// safeCall invokes the run function, converting a panic into an error.
func (b *BaseJob) safeCall(attempt int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("jobqueue: job %s panicked: %v", b.id, r)
		}
	}()
	if b.run == nil {
		return nil
	}
	return b.run(attempt)
}
