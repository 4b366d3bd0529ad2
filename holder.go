package jobqueue

import (
	"math"
	"sync"
	"sync/atomic"
)

// NotDelayed is the sentinel DelayUntilNs value meaning the holder may
// run as soon as it is dequeued.
const NotDelayed int64 = math.MinInt64

// JobHolder wraps a Job with the ordering and runtime metadata the
// queue and manager depend on. Construct one only through a
// HolderBuilder; a built holder always satisfies its invariants (a
// non-empty id, priority synchronized with the wrapped job, tags frozen
// at construction).
//
// Mutation discipline: runCount, delayUntilNs, insertionOrder,
// runningSessionID, groupID and priority are written only by the
// owning manager on its single control path. The cancelled and
// successful flags may be written and read from different goroutines
// concurrently and are atomic.
type JobHolder struct {
	jobID             string
	priority          int
	groupID           string
	runCount          int
	createdNs         int64
	delayUntilNs      int64
	runningSessionID  int64
	insertionOrder    int64
	hasInsertionOrder bool
	requiresNetwork   bool
	tags              []string
	job               Job

	cancelled  atomic.Bool
	successful atomic.Bool
	cancelOnce sync.Once
}

// ID returns the holder's identifier, derived from the wrapped Job.
// It is never empty and changes only when the job is replaced.
func (h *JobHolder) ID() string { return h.jobID }

// Job returns the wrapped Job. The holder addresses the job
// exclusively but does not own its lifecycle.
func (h *JobHolder) Job() Job { return h.job }

// SetJob replaces the wrapped Job and re-derives the holder's id from
// it. No other field changes.
func (h *JobHolder) SetJob(j Job) {
	h.job = j
	h.jobID = j.ID()
}

// Priority returns the holder's priority. Higher is more urgent.
func (h *JobHolder) Priority() int { return h.priority }

// SetPriority sets the priority on the holder and synchronously pushes
// it into the wrapped Job's own priority field. The two never diverge:
// the queue compares holders while execution code may read the job.
func (h *JobHolder) SetPriority(priority int) {
	h.priority = priority
	h.job.SetPriority(priority)
}

// GroupID returns the holder's group, or "". Holders sharing a group
// are serialized by the external manager; the holder itself enforces
// no mutual exclusion.
func (h *JobHolder) GroupID() string { return h.groupID }

// SetGroupID moves the holder to a different group. Called by the
// manager when a RetryConstraint requests a group change.
func (h *JobHolder) SetGroupID(groupID string) { h.groupID = groupID }

// RunCount returns the number of attempts so far.
func (h *JobHolder) RunCount() int { return h.runCount }

// SetRunCount sets the attempt count. The manager increments it before
// each run.
func (h *JobHolder) SetRunCount(n int) { h.runCount = n }

// CreatedNs returns the construction timestamp, the first ordering
// tie-break after priority.
func (h *JobHolder) CreatedNs() int64 { return h.createdNs }

// SetCreatedNs overrides the construction timestamp.
func (h *JobHolder) SetCreatedNs(ns int64) { h.createdNs = ns }

// DelayUntilNs returns the instant before which the holder must not be
// selected for execution, or NotDelayed.
func (h *JobHolder) DelayUntilNs() int64 { return h.delayUntilNs }

// SetDelayUntilNs sets the earliest execution instant.
func (h *JobHolder) SetDelayUntilNs(ns int64) { h.delayUntilNs = ns }

// RunningSessionID returns the execution generation this holder was
// built (or recovered) in. A mismatch against the current session marks
// the holder as abandoned in-flight work from a crashed session.
func (h *JobHolder) RunningSessionID() int64 { return h.runningSessionID }

// SetRunningSessionID stamps the holder with an execution generation.
func (h *JobHolder) SetRunningSessionID(sessionID int64) { h.runningSessionID = sessionID }

// InsertionOrder returns the queue-assigned order and whether one has
// been assigned. Holders without an insertion order are not comparable
// on the final tie-break.
func (h *JobHolder) InsertionOrder() (int64, bool) {
	return h.insertionOrder, h.hasInsertionOrder
}

// SetInsertionOrder assigns the insertion order. Called exactly once
// per enqueue by the owning queue.
func (h *JobHolder) SetInsertionOrder(order int64) {
	h.insertionOrder = order
	h.hasInsertionOrder = true
}

// ClearInsertionOrder unsets the insertion order so the queue assigns a
// fresh one at re-enqueue. Manager requeue path only.
func (h *JobHolder) ClearInsertionOrder() {
	h.insertionOrder = 0
	h.hasInsertionOrder = false
}

// RequiresNetwork reports the wrapped Job's network requirement as
// captured once at construction. It is never re-read from the job.
func (h *JobHolder) RequiresNetwork() bool { return h.requiresNetwork }

// Tags returns a copy of the tag snapshot taken at construction, or
// nil if the job had none.
func (h *JobHolder) Tags() []string {
	if h.tags == nil {
		return nil
	}
	out := make([]string, len(h.tags))
	copy(out, h.tags)
	return out
}

// HasTags reports whether the holder carries any tags.
func (h *JobHolder) HasTags() bool { return len(h.tags) > 0 }

// SafeRun executes the wrapped Job for the given attempt count. It is
// a pure pass-through: the Job contract requires SafeRun to catch all
// failures and translate them to a RunResult, so this never panics.
func (h *JobHolder) SafeRun(attempt int) RunResult {
	return h.job.SafeRun(h, attempt)
}

// MarkCancelled sets the cancellation flag on the holder and the
// wrapped Job together. Idempotent: only the first call reaches the
// job. Cancellation is cooperative: an in-flight execution is not
// interrupted and is expected to observe the flag itself.
func (h *JobHolder) MarkCancelled() {
	if h.cancelled.CompareAndSwap(false, true) {
		h.job.MarkCancelled()
	}
}

// IsCancelled reports whether cancellation has been requested.
func (h *JobHolder) IsCancelled() bool { return h.cancelled.Load() }

// OnCancel notifies the wrapped Job of cancellation exactly once. Safe
// to invoke while the holder is concurrently executing.
func (h *JobHolder) OnCancel() {
	h.cancelOnce.Do(h.job.OnCancel)
}

// MarkSuccessful records that execution completed without error. Safe
// to call from the run goroutine while other goroutines poll
// IsSuccessful.
func (h *JobHolder) MarkSuccessful() { h.successful.Store(true) }

// IsSuccessful reports whether the holder has been marked successful.
// A read after MarkSuccessful returns on another goroutine observes
// the write.
func (h *JobHolder) IsSuccessful() bool { return h.successful.Load() }

// RetryConstraint returns the wrapped Job's retry policy, or nil.
// Read-only pass-through; the holder never interprets it.
func (h *JobHolder) RetryConstraint() *RetryConstraint {
	return h.job.RetryConstraint()
}

// AttachHost injects the host execution context into the wrapped Job.
func (h *JobHolder) AttachHost(host any) { h.job.AttachHost(host) }

// Equal reports identity equality: two holders are equal iff their ids
// are equal. Use ID() as the key in hash-based structures; equal
// holders always share the same key.
func (h *JobHolder) Equal(o *JobHolder) bool {
	return o != nil && h.jobID == o.jobID
}

// Compare orders holders by the composite ordering key: priority
// descending, then createdNs ascending, then insertionOrder ascending.
// It returns -1 when h runs before o, +1 when after, and 0 when the
// key cannot separate them. Holders missing an insertion order are not
// comparable on the final tie-break and compare as 0 at that level.
func (h *JobHolder) Compare(o *JobHolder) int {
	if h.priority != o.priority {
		if h.priority > o.priority {
			return -1
		}
		return 1
	}
	if h.createdNs != o.createdNs {
		if h.createdNs < o.createdNs {
			return -1
		}
		return 1
	}
	if h.hasInsertionOrder && o.hasInsertionOrder && h.insertionOrder != o.insertionOrder {
		if h.insertionOrder < o.insertionOrder {
			return -1
		}
		return 1
	}
	return 0
}
