package jobqueue_test

import (
	"encoding/json"
	"errors"
	"testing"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

type reportPayload struct {
	URL string `json:"url"`
}

func reportJob(id, url string) *jobqueue.BaseJob {
	payload, _ := json.Marshal(reportPayload{URL: url})
	return jobqueue.NewJob(
		func(int) error { return nil },
		jobqueue.WithID(id),
		jobqueue.WithRequiresNetwork(true),
		jobqueue.WithPersistence("report", payload),
	)
}

func reportRegistry() *jobqueue.Registry {
	reg := jobqueue.NewRegistry()
	reg.Register("report", func(payload []byte) (jobqueue.Job, error) {
		var p reportPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return reportJob("job_report", p.URL), nil
	})
	return reg
}

func TestSnapshotRebuild_RoundTrip(t *testing.T) {
	h, err := jobqueue.NewHolderBuilder().
		Job(reportJob("job_report", "https://example.com/metrics")).
		Priority(7).
		RunningSessionID(111).
		CreatedNs(5000).
		GroupID("reports").
		RunCount(2).
		DelayUntilNs(9000).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	h.SetInsertionOrder(4)

	rec, err := h.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if rec.JobType != "report" || len(rec.Payload) == 0 {
		t.Fatalf("Snapshot did not capture persistence fields: %+v", rec)
	}
	if rec.InsertionOrder == nil || *rec.InsertionOrder != 4 {
		t.Errorf("Snapshot insertion order = %v, want 4", rec.InsertionOrder)
	}

	got, err := rec.Rebuild(reportRegistry(), 222)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if got.Priority() != 7 || got.CreatedNs() != 5000 || got.RunCount() != 2 {
		t.Errorf("Rebuild lost metadata: priority=%d created=%d runCount=%d",
			got.Priority(), got.CreatedNs(), got.RunCount())
	}
	if got.GroupID() != "reports" || got.DelayUntilNs() != 9000 {
		t.Errorf("Rebuild lost group/delay: group=%q delay=%d", got.GroupID(), got.DelayUntilNs())
	}
	if got.RunningSessionID() != 222 {
		t.Errorf("RunningSessionID() = %d, want re-stamped 222", got.RunningSessionID())
	}
	if _, ok := got.InsertionOrder(); ok {
		t.Error("Rebuild must leave the insertion order unset")
	}
	if !got.RequiresNetwork() {
		t.Error("Rebuild lost the network requirement")
	}
}

func TestRebuild_PreservesCancelled(t *testing.T) {
	h, err := jobqueue.NewHolderBuilder().
		Job(reportJob("job_report", "https://example.com")).
		Priority(1).
		RunningSessionID(1).
		CreatedNs(1).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	h.MarkCancelled()

	rec, err := h.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	got, err := rec.Rebuild(reportRegistry(), 2)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !got.IsCancelled() {
		t.Error("Rebuild must preserve the cancelled flag")
	}
}

func TestRebuild_UnknownType(t *testing.T) {
	rec := jobqueue.Record{ID: "job_x", JobType: "never-registered"}
	_, err := rec.Rebuild(jobqueue.NewRegistry(), 1)
	if !errors.Is(err, jobqueue.ErrUnknownJobType) {
		t.Errorf("Rebuild() error = %v, want ErrUnknownJobType", err)
	}
}

func TestRegistry_Types(t *testing.T) {
	reg := jobqueue.NewRegistry()
	reg.Register("a", func([]byte) (jobqueue.Job, error) { return nil, nil })
	reg.Register("b", func([]byte) (jobqueue.Job, error) { return nil, nil })

	types := reg.Types()
	if len(types) != 2 {
		t.Fatalf("Types() = %v, want 2 entries", types)
	}
}
