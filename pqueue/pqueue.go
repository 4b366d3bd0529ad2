// Package pqueue implements the in-memory priority structure that
// orders job holders for execution. Ordering reproduces the holder's
// composite key exactly: priority descending, creation time ascending,
// insertion order ascending. The queue assigns each holder's insertion
// order exactly once at enqueue from a monotonically increasing
// counter, which makes the ordering of queued holders total.
package pqueue

import (
	"container/heap"
	"sync"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// Queue is a heap-backed priority queue of job holders with id-based
// de-duplication. Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	entries   holderHeap
	byID      map[string]*entry
	nextOrder int64
}

type entry struct {
	holder *jobqueue.JobHolder
	index  int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{byID: make(map[string]*entry)}
}

// Insert enqueues a holder, assigning the next insertion order unless
// the holder already carries one (a pre-assigned order is preserved and
// the counter advanced past it). A holder with the same id already in
// the queue is rejected with ErrDuplicateJob.
func (q *Queue) Insert(h *jobqueue.JobHolder) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byID[h.ID()]; exists {
		return jobqueue.ErrDuplicateJob
	}

	if order, ok := h.InsertionOrder(); ok {
		if order >= q.nextOrder {
			q.nextOrder = order + 1
		}
	} else {
		h.SetInsertionOrder(q.nextOrder)
		q.nextOrder++
	}

	e := &entry{holder: h}
	heap.Push(&q.entries, e)
	q.byID[h.ID()] = e
	return nil
}

// Remove takes the holder with the given id out of the queue and
// returns it, or nil if absent.
func (q *Queue) Remove(jobID string) *jobqueue.JobHolder {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[jobID]
	if !ok {
		return nil
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, jobID)
	return e.holder
}

// FindByID returns the queued holder with the given id, or nil.
func (q *Queue) FindByID(jobID string) *jobqueue.JobHolder {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.byID[jobID]; ok {
		return e.holder
	}
	return nil
}

// Count returns the number of queued holders.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// CountReady returns the number of holders eligible to run at nowNs
// given the current connectivity, ignoring group exclusion.
func (q *Queue) CountReady(nowNs int64, hasNetwork bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if eligible(e.holder, nowNs, hasNetwork) {
			n++
		}
	}
	return n
}

// Next claims the best eligible holder: not delayed past nowNs, not
// requiring network when there is none, and not in an excluded group.
// The claimed holder is removed from the queue; the caller re-inserts
// it on a retryable outcome. Returns nil when nothing is eligible.
func (q *Queue) Next(nowNs int64, hasNetwork bool, excludeGroups []string) *jobqueue.JobHolder {
	q.mu.Lock()
	defer q.mu.Unlock()

	excluded := make(map[string]struct{}, len(excludeGroups))
	for _, g := range excludeGroups {
		excluded[g] = struct{}{}
	}

	// Pop in order, setting aside ineligible holders, until an eligible
	// one surfaces. Everything set aside goes back on the heap.
	var skipped []*entry
	var claimed *jobqueue.JobHolder
	for q.entries.Len() > 0 {
		e, _ := heap.Pop(&q.entries).(*entry)
		h := e.holder
		if !eligible(h, nowNs, hasNetwork) {
			skipped = append(skipped, e)
			continue
		}
		if g := h.GroupID(); g != "" {
			if _, ok := excluded[g]; ok {
				skipped = append(skipped, e)
				continue
			}
		}
		claimed = h
		delete(q.byID, h.ID())
		break
	}
	for _, e := range skipped {
		heap.Push(&q.entries, e)
	}
	return claimed
}

// NextDelayUntilNs returns the earliest delay-until instant among
// holders that are only blocked by their delay, so the caller can arm
// a wake-up timer. ok is false when no such holder exists.
func (q *Queue) NextDelayUntilNs(nowNs int64, hasNetwork bool) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best int64
	found := false
	for _, e := range q.entries {
		h := e.holder
		if h.RequiresNetwork() && !hasNetwork {
			continue
		}
		until := h.DelayUntilNs()
		if until == jobqueue.NotDelayed || until <= nowNs {
			continue
		}
		if !found || until < best {
			best = until
			found = true
		}
	}
	return best, found
}

// Clear removes every queued holder.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.byID = make(map[string]*entry)
}

func eligible(h *jobqueue.JobHolder, nowNs int64, hasNetwork bool) bool {
	if until := h.DelayUntilNs(); until != jobqueue.NotDelayed && until > nowNs {
		return false
	}
	if h.RequiresNetwork() && !hasNetwork {
		return false
	}
	return true
}

// holderHeap implements heap.Interface over entries using the holder's
// composite comparator.
type holderHeap []*entry

func (hh holderHeap) Len() int { return len(hh) }

func (hh holderHeap) Less(i, j int) bool {
	return hh[i].holder.Compare(hh[j].holder) < 0
}

func (hh holderHeap) Swap(i, j int) {
	hh[i], hh[j] = hh[j], hh[i]
	hh[i].index = i
	hh[j].index = j
}

func (hh *holderHeap) Push(x any) {
	e, _ := x.(*entry)
	e.index = len(*hh)
	*hh = append(*hh, e)
}

func (hh *holderHeap) Pop() any {
	old := *hh
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*hh = old[:n-1]
	return e
}
