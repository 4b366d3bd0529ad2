package manager_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	"github.com/nnikos123/android-priority-jobqueue/group"
	"github.com/nnikos123/android-priority-jobqueue/manager"
	"github.com/nnikos123/android-priority-jobqueue/network"
	"github.com/nnikos123/android-priority-jobqueue/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(opts ...manager.Option) *manager.Manager {
	opts = append([]manager.Option{
		manager.WithLogger(quietLogger()),
		manager.WithConcurrency(2),
		manager.WithIdlePollInterval(5 * time.Millisecond),
	}, opts...)
	return manager.New(opts...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stop(t *testing.T, m *manager.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestManager_RunsJobToSuccess(t *testing.T) {
	m := newTestManager()

	done := make(chan struct{})
	j := jobqueue.NewJob(func(int) error {
		close(done)
		return nil
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	jobID, err := m.AddJob(context.Background(), j, 1)
	if err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if jobID == "" {
		t.Fatal("AddJob() returned empty id")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	waitFor(t, "queue to drain", func() bool { return m.Count() == 0 })
}

func TestManager_StartTwice(t *testing.T) {
	m := newTestManager()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	if err := m.Start(context.Background()); !errors.Is(err, jobqueue.ErrManagerStarted) {
		t.Errorf("second Start() error = %v, want ErrManagerStarted", err)
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := newTestManager()
	if err := m.Stop(context.Background()); !errors.Is(err, jobqueue.ErrManagerStopped) {
		t.Errorf("Stop() error = %v, want ErrManagerStopped", err)
	}
}

func TestManager_RetriesUntilSuccess(t *testing.T) {
	m := newTestManager()

	var attempts atomic.Int32
	done := make(chan struct{})
	j := jobqueue.NewJob(
		func(attempt int) error {
			attempts.Store(int32(attempt))
			if attempt < 3 {
				return errors.New("transient")
			}
			close(done)
			return nil
		},
		jobqueue.WithRetryConstraint(
			jobqueue.NewRetryConstraint(jobqueue.WithRetryDelay(time.Millisecond)),
		),
	)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	if _, err := m.AddJob(context.Background(), j, 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job never succeeded; attempts = %d", attempts.Load())
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestManager_RunLimitDiscardsJob(t *testing.T) {
	m := newTestManager()

	var attempts atomic.Int32
	j := jobqueue.NewJob(
		func(attempt int) error {
			attempts.Store(int32(attempt))
			return errors.New("permanent")
		},
		jobqueue.WithRetryLimit(2),
		jobqueue.WithRetryConstraint(
			jobqueue.NewRetryConstraint(jobqueue.WithRetryDelay(time.Millisecond)),
		),
	)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	if _, err := m.AddJob(context.Background(), j, 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	waitFor(t, "job to exhaust its attempts", func() bool {
		return attempts.Load() == 2 && m.Count() == 0
	})
	// Give a stray extra attempt time to surface.
	time.Sleep(20 * time.Millisecond)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want exactly the limit of 2", got)
	}
}

func TestManager_DelayedJobWaits(t *testing.T) {
	m := newTestManager()

	ran := make(chan time.Time, 1)
	j := jobqueue.NewJob(func(int) error {
		ran <- time.Now()
		return nil
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	added := time.Now()
	if _, err := m.AddJob(context.Background(), j, 1, manager.WithDelay(50*time.Millisecond)); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	select {
	case at := <-ran:
		if elapsed := at.Sub(added); elapsed < 50*time.Millisecond {
			t.Errorf("job ran after %v, want >= 50ms delay", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed job never ran")
	}
}

func TestManager_CancelQueuedJob(t *testing.T) {
	m := newTestManager()

	cancelled := make(chan struct{})
	ran := false
	j := jobqueue.NewJob(
		func(int) error {
			ran = true
			return nil
		},
		jobqueue.WithCancelFunc(func() { close(cancelled) }),
	)

	// Not started: the job stays queued.
	jobID, err := m.AddJob(context.Background(), j, 1)
	if err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	if err := m.CancelJob(context.Background(), jobID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("cancel callback never fired")
	}
	if ran {
		t.Error("cancelled job must not run")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after cancel, want 0", m.Count())
	}
}

func TestManager_CancelUnknownJob(t *testing.T) {
	m := newTestManager()
	err := m.CancelJob(context.Background(), "job_never_added")
	if !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Errorf("CancelJob() error = %v, want ErrJobNotFound", err)
	}
}

func TestManager_CancelRunningJobIsCooperative(t *testing.T) {
	m := newTestManager()

	started := make(chan struct{})
	release := make(chan struct{})
	outcome := make(chan struct{})
	j := jobqueue.NewJob(
		func(int) error {
			close(started)
			<-release
			return errors.New("interrupted")
		},
		jobqueue.WithCancelFunc(func() { close(outcome) }),
	)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	jobID, err := m.AddJob(context.Background(), j, 1)
	if err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	<-started
	if err := m.CancelJob(context.Background(), jobID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}
	close(release)

	// The failing run observes the cancel flag and the manager fires
	// the cancellation callback instead of retrying.
	select {
	case <-outcome:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel callback never fired for running job")
	}
}

func TestManager_GroupMembersNeverOverlap(t *testing.T) {
	m := newTestManager(manager.WithConcurrency(4))

	var running, peak atomic.Int32
	var remaining atomic.Int32
	remaining.Store(5)
	done := make(chan struct{})

	mkJob := func() *jobqueue.BaseJob {
		return jobqueue.NewJob(func(int) error {
			n := running.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			if remaining.Add(-1) == 0 {
				close(done)
			}
			return nil
		})
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	for range 5 {
		if _, err := m.AddJob(context.Background(), mkJob(), 1, manager.WithGroup("serial")); err != nil {
			t.Fatalf("AddJob() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("group jobs never finished")
	}
	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrency in group = %d, want 1", p)
	}
}

func TestManager_RateLimitedGroup(t *testing.T) {
	m := newTestManager(
		manager.WithGroupConfig(group.Config{Name: "throttled", RateLimit: 0.001, RateBurst: 1}),
	)

	var runs atomic.Int32
	mkJob := func() *jobqueue.BaseJob {
		return jobqueue.NewJob(func(int) error {
			runs.Add(1)
			return nil
		})
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	for range 3 {
		if _, err := m.AddJob(context.Background(), mkJob(), 1, manager.WithGroup("throttled")); err != nil {
			t.Fatalf("AddJob() error = %v", err)
		}
	}

	// Only the burst's single token is spent; the rest stay queued.
	waitFor(t, "first group job to run", func() bool { return runs.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 within the rate window", got)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2 still queued", m.Count())
	}
}

func TestManager_NetworkJobWaitsForConnectivity(t *testing.T) {
	notifier := network.NewNotifier(false)
	m := newTestManager(manager.WithNetworkMonitor(notifier))

	done := make(chan struct{})
	j := jobqueue.NewJob(
		func(int) error {
			close(done)
			return nil
		},
		jobqueue.WithRequiresNetwork(true),
	)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	if _, err := m.AddJob(context.Background(), j, 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	select {
	case <-done:
		t.Fatal("network job ran while offline")
	case <-time.After(50 * time.Millisecond):
	}
	if got := m.CountReady(); got != 0 {
		t.Errorf("CountReady() = %d offline, want 0", got)
	}

	notifier.Set(true)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("network job never ran after connectivity returned")
	}
}

type recoveryPayload struct {
	Marker string `json:"marker"`
}

func TestManager_RecoversOrphanedRecords(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()

	ran := make(chan string, 1)
	reg := jobqueue.NewRegistry()
	reg.Register("recovery", func(payload []byte) (jobqueue.Job, error) {
		var p recoveryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return jobqueue.NewJob(
			func(int) error {
				ran <- p.Marker
				return nil
			},
			jobqueue.WithID("job_recovered"),
			jobqueue.WithPersistence("recovery", payload),
		), nil
	})

	// First session persists a job but never runs it.
	first := newTestManager(manager.WithStore(st), manager.WithRegistry(reg))
	payload, _ := json.Marshal(recoveryPayload{Marker: "survived"})
	j := jobqueue.NewJob(
		func(int) error { return nil },
		jobqueue.WithID("job_recovered"),
		jobqueue.WithPersistence("recovery", payload),
	)
	if _, err := first.AddJob(ctx, j, 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("store Count() = %d after AddJob, want 1", n)
	}

	// Second session recovers and runs the orphaned record.
	second := newTestManager(manager.WithStore(st), manager.WithRegistry(reg))
	if second.SessionID() == first.SessionID() {
		t.Fatal("sessions must not share an id")
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, second)

	select {
	case marker := <-ran:
		if marker != "survived" {
			t.Errorf("marker = %q, want payload round-tripped", marker)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("recovered job never ran")
	}

	waitFor(t, "record removal after success", func() bool {
		n, _ := st.Count(ctx)
		return n == 0
	})
}

func TestManager_PersistentJobRemovedOnSuccess(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	defer st.Close()

	m := newTestManager(manager.WithStore(st))
	done := make(chan struct{})
	j := jobqueue.NewJob(
		func(int) error {
			close(done)
			return nil
		},
		jobqueue.WithPersistence("oneshot", []byte(`{}`)),
	)

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	if _, err := m.AddJob(ctx, j, 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	waitFor(t, "record removal", func() bool {
		n, _ := st.Count(ctx)
		return n == 0
	})
}

func TestManager_PriorityOrderRespected(t *testing.T) {
	m := newTestManager(manager.WithConcurrency(1))

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	mkJob := func(tag int, signal bool) *jobqueue.BaseJob {
		return jobqueue.NewJob(func(int) error {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
			if signal {
				close(done)
			}
			return nil
		})
	}

	// Queue before starting so all three are pending together.
	if _, err := m.AddJob(context.Background(), mkJob(1, false), 1); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if _, err := m.AddJob(context.Background(), mkJob(9, false), 9); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}
	if _, err := m.AddJob(context.Background(), mkJob(5, true), 5); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, m)

	<-done
	waitFor(t, "all jobs to run", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := []int{9, 5, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
