package jobqueue

// HolderBuilder produces a fully-formed JobHolder or nothing at all.
// Job, Priority, RunningSessionID and CreatedNs must be explicitly
// provided. Zero is a valid value for the latter three, so presence is
// tracked per field rather than inferred from the value.
type HolderBuilder struct {
	job            Job
	priority       int
	sessionID      int64
	createdNs      int64
	groupID        string
	runCount       int
	delayUntilNs   int64
	insertionOrder *int64

	hasPriority  bool
	hasSessionID bool
	hasCreatedNs bool
}

// NewHolderBuilder creates a builder with DelayUntilNs defaulted to
// NotDelayed and RunCount to zero.
func NewHolderBuilder() *HolderBuilder {
	return &HolderBuilder{delayUntilNs: NotDelayed}
}

// Job sets the wrapped Job. Required.
func (b *HolderBuilder) Job(j Job) *HolderBuilder {
	b.job = j
	return b
}

// Priority sets the holder's priority. Required, even when zero.
func (b *HolderBuilder) Priority(priority int) *HolderBuilder {
	b.priority = priority
	b.hasPriority = true
	return b
}

// RunningSessionID sets the execution generation. Required, even when
// zero.
func (b *HolderBuilder) RunningSessionID(sessionID int64) *HolderBuilder {
	b.sessionID = sessionID
	b.hasSessionID = true
	return b
}

// CreatedNs sets the construction timestamp. Required, even when zero.
func (b *HolderBuilder) CreatedNs(ns int64) *HolderBuilder {
	b.createdNs = ns
	b.hasCreatedNs = true
	return b
}

// GroupID sets the holder's group. Optional.
func (b *HolderBuilder) GroupID(groupID string) *HolderBuilder {
	b.groupID = groupID
	return b
}

// RunCount sets the initial attempt count. Optional, default 0.
func (b *HolderBuilder) RunCount(n int) *HolderBuilder {
	b.runCount = n
	return b
}

// DelayUntilNs sets the earliest execution instant. Optional, default
// NotDelayed.
func (b *HolderBuilder) DelayUntilNs(ns int64) *HolderBuilder {
	b.delayUntilNs = ns
	return b
}

// InsertionOrder pre-assigns the queue insertion order. Optional,
// default unset; normally left to the queue at enqueue time.
func (b *HolderBuilder) InsertionOrder(order int64) *HolderBuilder {
	b.insertionOrder = &order
	return b
}

// Build validates the required fields and returns an
// invariant-satisfying holder. On a missing field it fails immediately
// with a sentinel error and constructs nothing.
func (b *HolderBuilder) Build() (*JobHolder, error) {
	if b.job == nil {
		return nil, ErrNoJob
	}
	if !b.hasPriority {
		return nil, ErrPriorityNotSet
	}
	if !b.hasSessionID {
		return nil, ErrSessionIDNotSet
	}
	if !b.hasCreatedNs {
		return nil, ErrCreatedAtNotSet
	}

	h := &JobHolder{
		jobID:            b.job.ID(),
		priority:         b.priority,
		groupID:          b.groupID,
		runCount:         b.runCount,
		createdNs:        b.createdNs,
		delayUntilNs:     b.delayUntilNs,
		runningSessionID: b.sessionID,
		requiresNetwork:  b.job.RequiresNetwork(),
		job:              b.job,
	}

	// Keep the job's own priority field in sync from the start.
	b.job.SetPriority(b.priority)

	// Defensive copy: the tag snapshot never changes after this point.
	if tags := b.job.Tags(); tags != nil {
		h.tags = make([]string, len(tags))
		copy(h.tags, tags)
	}

	if b.insertionOrder != nil {
		h.SetInsertionOrder(*b.insertionOrder)
	}
	return h, nil
}
