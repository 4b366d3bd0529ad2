package jobqueue

// Record is the flat persistence view of a JobHolder. Stores serialize
// Records for durability; the wire layout beyond this struct is each
// backend's own concern. JobType and Payload are populated only for
// jobs that implement PersistentJob.
type Record struct {
	ID               string   `json:"id"`
	JobType          string   `json:"job_type,omitempty"`
	Payload          []byte   `json:"payload,omitempty"`
	Priority         int      `json:"priority"`
	GroupID          string   `json:"group_id,omitempty"`
	RunCount         int      `json:"run_count"`
	CreatedNs        int64    `json:"created_ns"`
	DelayUntilNs     int64    `json:"delay_until_ns"`
	RunningSessionID int64    `json:"running_session_id"`
	InsertionOrder   *int64   `json:"insertion_order,omitempty"`
	RequiresNetwork  bool     `json:"requires_network"`
	Tags             []string `json:"tags,omitempty"`
	Cancelled        bool     `json:"cancelled"`
}

// Snapshot captures the holder's current state as a Record.
func (h *JobHolder) Snapshot() (Record, error) {
	rec := Record{
		ID:               h.jobID,
		Priority:         h.priority,
		GroupID:          h.groupID,
		RunCount:         h.runCount,
		CreatedNs:        h.createdNs,
		DelayUntilNs:     h.delayUntilNs,
		RunningSessionID: h.runningSessionID,
		RequiresNetwork:  h.requiresNetwork,
		Tags:             h.Tags(),
		Cancelled:        h.IsCancelled(),
	}
	if order, ok := h.InsertionOrder(); ok {
		rec.InsertionOrder = &order
	}
	if pj, ok := h.job.(PersistentJob); ok {
		payload, err := pj.Payload()
		if err != nil {
			return Record{}, err
		}
		rec.JobType = pj.TypeName()
		rec.Payload = payload
	}
	return rec, nil
}

// Rebuild reconstructs a holder from a persisted record for the given
// execution session. The job is decoded through the registry; run
// count, creation time, priority, group and delay are preserved, the
// session id is re-stamped, and the insertion order is left unset so
// the queue assigns a fresh one. A cancelled record yields a holder
// already marked cancelled.
func (r Record) Rebuild(reg *Registry, sessionID int64) (*JobHolder, error) {
	j, err := reg.Decode(r.JobType, r.Payload)
	if err != nil {
		return nil, err
	}

	h, err := NewHolderBuilder().
		Job(j).
		Priority(r.Priority).
		RunningSessionID(sessionID).
		CreatedNs(r.CreatedNs).
		GroupID(r.GroupID).
		RunCount(r.RunCount).
		DelayUntilNs(r.DelayUntilNs).
		Build()
	if err != nil {
		return nil, err
	}
	if r.Cancelled {
		h.MarkCancelled()
	}
	return h, nil
}
