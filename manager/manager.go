// Package manager wires the jobqueue subsystems together: the priority
// queue, group tracker, network monitor, middleware chain, and optional
// persistent store. It owns the worker goroutines that claim and run
// jobs, and the session identity used to detect work orphaned by a
// previous process.
//
// This package sits above all subsystem packages and below the
// application layer, which keeps the root package free of import
// cycles.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	"github.com/nnikos123/android-priority-jobqueue/backoff"
	"github.com/nnikos123/android-priority-jobqueue/group"
	"github.com/nnikos123/android-priority-jobqueue/id"
	mw "github.com/nnikos123/android-priority-jobqueue/middleware"
	"github.com/nnikos123/android-priority-jobqueue/network"
	"github.com/nnikos123/android-priority-jobqueue/pqueue"
	"github.com/nnikos123/android-priority-jobqueue/store"
)

// Manager runs jobs from a priority queue across a pool of worker
// goroutines. Each Manager instance gets a unique session id at
// construction; holders it runs carry that id so a later session can
// recover records the process left behind.
type Manager struct {
	cfg       jobqueue.Config
	sessionID int64
	workerID  id.ID

	store    store.Store
	registry *jobqueue.Registry
	monitor  network.Monitor
	logger   *slog.Logger
	groups   *group.Tracker
	chain    mw.Middleware
	policy   backoff.Policy
	host     any

	mws []mw.Middleware

	// mu guards the queue and the claim path so that ordering and
	// group acquisition are decided atomically.
	mu      sync.Mutex
	queue   *pqueue.Queue
	running bool

	stopCh   chan struct{}
	notifyCh chan struct{}
	wg       sync.WaitGroup

	activeMu sync.Mutex
	active   map[string]*jobqueue.JobHolder
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistent record store. Jobs that implement
// PersistentJob are written through to it and recovered on Start.
func WithStore(s store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithRegistry sets the job type registry used to rebuild persisted
// jobs during recovery.
func WithRegistry(r *jobqueue.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithNetworkMonitor sets the connectivity source consulted before
// running jobs that require network.
func WithNetworkMonitor(mon network.Monitor) Option {
	return func(m *Manager) { m.monitor = mon }
}

// WithLogger sets the logger for the manager and its workers.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMiddleware appends middleware to the run chain. Middleware wraps
// every job execution in registration order.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(m *Manager) { m.mws = append(m.mws, mws...) }
}

// WithGroupConfig registers per-group rate limits. Groups not listed
// are still serialized but never rate limited.
func WithGroupConfig(cfgs ...group.Config) Option {
	return func(m *Manager) {
		for _, cfg := range cfgs {
			m.groups.SetConfig(cfg)
		}
	}
}

// WithHost sets the host object attached to every job before it runs.
func WithHost(host any) Option {
	return func(m *Manager) { m.host = host }
}

// WithRetryPolicy sets the fallback backoff policy used when a job's
// retry constraint does not dictate a delay.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.cfg.Concurrency = n }
}

// WithIdlePollInterval sets how long idle workers wait before
// re-checking the queue when nothing wakes them sooner.
func WithIdlePollInterval(d time.Duration) Option {
	return func(m *Manager) { m.cfg.IdlePollInterval = d }
}

// WithShutdownTimeout bounds how long Stop waits for in-flight jobs
// when its context has no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) { m.cfg.ShutdownTimeout = d }
}

// New creates a Manager. The session id is derived from the wall clock
// at construction so that two process lifetimes never share one.
func New(opts ...Option) *Manager {
	m := &Manager{
		cfg:       jobqueue.DefaultConfig(),
		sessionID: time.Now().UnixNano(),
		workerID:  id.NewWorkerID(),
		monitor:   network.Static(true),
		logger:    slog.Default(),
		groups:    group.NewTracker(),
		policy:    backoff.Default(),
		queue:     pqueue.New(),
		stopCh:    make(chan struct{}),
		notifyCh:  make(chan struct{}, 1),
		active:    make(map[string]*jobqueue.JobHolder),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.chain = mw.Chain(m.mws...)

	// Wake idle workers when connectivity changes so network-bound
	// jobs run as soon as the link comes back.
	if sub, ok := m.monitor.(interface{ Subscribe(network.Listener) }); ok {
		sub.Subscribe(func(bool) { m.notify() })
	}
	return m
}

// SessionID returns the manager's execution session id.
func (m *Manager) SessionID() int64 { return m.sessionID }

// WorkerID returns the manager's unique worker identifier.
func (m *Manager) WorkerID() id.ID { return m.workerID }

// AddOption configures a single AddJob call.
type AddOption func(*addParams)

type addParams struct {
	groupID string
	delay   time.Duration
}

// WithGroup places the job in the named group. Jobs sharing a group id
// never run concurrently.
func WithGroup(groupID string) AddOption {
	return func(p *addParams) { p.groupID = groupID }
}

// WithDelay keeps the job out of dispatch until the delay elapses.
func WithDelay(d time.Duration) AddOption {
	return func(p *addParams) { p.delay = d }
}

// AddJob enqueues a job at the given priority and returns its id. The
// job becomes eligible immediately unless delayed; if it implements
// PersistentJob and a store is configured, the record is written
// through before AddJob returns.
func (m *Manager) AddJob(ctx context.Context, j jobqueue.Job, priority int, opts ...AddOption) (string, error) {
	var p addParams
	for _, opt := range opts {
		opt(&p)
	}

	now := time.Now().UnixNano()
	b := jobqueue.NewHolderBuilder().
		Job(j).
		Priority(priority).
		RunningSessionID(m.sessionID).
		CreatedNs(now).
		GroupID(p.groupID)
	if p.delay > 0 {
		b.DelayUntilNs(now + p.delay.Nanoseconds())
	}
	h, err := b.Build()
	if err != nil {
		return "", err
	}
	if m.host != nil {
		h.AttachHost(m.host)
	}

	m.mu.Lock()
	err = m.queue.Insert(h)
	m.mu.Unlock()
	if err != nil {
		return "", err
	}

	if m.persistable(h) {
		rec, snapErr := h.Snapshot()
		if snapErr == nil {
			snapErr = m.store.Insert(ctx, rec)
		}
		if snapErr != nil {
			m.mu.Lock()
			m.queue.Remove(h.ID())
			m.mu.Unlock()
			return "", snapErr
		}
	}

	m.logger.Debug("job added",
		slog.String("job_id", h.ID()),
		slog.Int("priority", priority),
		slog.String("group_id", p.groupID),
	)
	m.notify()
	return h.ID(), nil
}

// Start recovers any persisted work left over from other sessions and
// launches the worker goroutines. It returns immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return jobqueue.ErrManagerStarted
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	if err := m.recover(ctx); err != nil {
		m.logger.Warn("recovery failed", slog.String("error", err.Error()))
	}

	m.logger.Info("manager starting",
		slog.String("worker_id", m.workerID.String()),
		slog.Int64("session_id", m.sessionID),
		slog.Int("concurrency", m.cfg.Concurrency),
	)

	for range m.cfg.Concurrency {
		m.wg.Add(1)
		go m.workerLoop()
	}
	return nil
}

// Stop signals all workers and waits for them to finish. The
// configured shutdown timeout applies when the context carries no
// deadline of its own; once time runs out, still-running jobs are
// cancelled cooperatively and Stop waits for them to observe it.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return jobqueue.ErrManagerStopped
	}
	m.running = false
	m.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}

	m.logger.Info("manager stopping", slog.String("worker_id", m.workerID.String()))
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("manager stopped gracefully")
	case <-ctx.Done():
		m.logger.Warn("shutdown deadline reached, cancelling active jobs")
		m.cancelActive()
		m.wg.Wait()
	}
	return nil
}

// CancelJob cancels the job with the given id. A queued job is removed
// and notified immediately; a running job is marked cancelled and will
// report it when its current attempt finishes. Unknown ids return
// ErrJobNotFound.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	m.activeMu.Lock()
	if h, ok := m.active[jobID]; ok {
		h.MarkCancelled()
		m.activeMu.Unlock()
		return nil
	}
	m.activeMu.Unlock()

	m.mu.Lock()
	h := m.queue.Remove(jobID)
	m.mu.Unlock()
	if h == nil {
		return jobqueue.ErrJobNotFound
	}

	h.MarkCancelled()
	h.OnCancel()
	m.removeRecord(ctx, h)
	m.logger.Info("job cancelled", slog.String("job_id", jobID))
	return nil
}

// Count returns the number of queued jobs, running jobs excluded.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Count()
}

// CountReady returns the number of jobs eligible to run right now
// given current connectivity.
func (m *Manager) CountReady() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.CountReady(time.Now().UnixNano(), m.monitor.Connected())
}

// recover rebuilds holders from records persisted by other sessions.
func (m *Manager) recover(ctx context.Context) error {
	if m.store == nil || m.registry == nil {
		return nil
	}
	recs, err := m.store.OrphanedBySession(ctx, m.sessionID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		h, rbErr := rec.Rebuild(m.registry, m.sessionID)
		if rbErr != nil {
			m.logger.Warn("skipping unrecoverable record",
				slog.String("job_id", rec.ID),
				slog.String("job_type", rec.JobType),
				slog.String("error", rbErr.Error()),
			)
			continue
		}
		if m.host != nil {
			h.AttachHost(m.host)
		}

		m.mu.Lock()
		insErr := m.queue.Insert(h)
		m.mu.Unlock()
		if insErr != nil {
			continue
		}
		m.persist(ctx, h)
	}
	if len(recs) > 0 {
		m.logger.Info("recovered persisted jobs", slog.Int("count", len(recs)))
	}
	return nil
}

// workerLoop is run by each worker goroutine.
func (m *Manager) workerLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		h := m.claim()
		if h == nil {
			m.wait()
			continue
		}
		m.runHolder(h)
	}
}

// claim atomically picks the next eligible holder and acquires its
// group slot. A holder whose group is rate limited goes back into the
// queue untouched.
func (m *Manager) claim() *jobqueue.JobHolder {
	nowNs := time.Now().UnixNano()
	connected := m.monitor.Connected()

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.queue.Next(nowNs, connected, m.groups.Running())
	if h == nil {
		return nil
	}
	if !m.groups.TryAcquire(h.GroupID()) {
		m.queue.Insert(h) //nolint:errcheck // id was just removed, re-insert cannot collide
		return nil
	}
	return h
}

func (m *Manager) runHolder(h *jobqueue.JobHolder) {
	attempt := h.RunCount() + 1
	h.SetRunCount(attempt)

	m.activeMu.Lock()
	m.active[h.ID()] = h
	m.activeMu.Unlock()

	ctx := context.Background()
	res := m.chain(ctx, h, func(context.Context) jobqueue.RunResult {
		return h.SafeRun(attempt)
	})

	m.activeMu.Lock()
	delete(m.active, h.ID())
	m.activeMu.Unlock()
	m.groups.Release(h.GroupID())

	switch res {
	case jobqueue.RunResultSuccess:
		h.MarkSuccessful()
		m.removeRecord(ctx, h)
	case jobqueue.RunResultFailRunLimit:
		m.logger.Warn("job exhausted its run limit",
			slog.String("job_id", h.ID()),
			slog.Int("run_count", attempt),
		)
		m.removeRecord(ctx, h)
	case jobqueue.RunResultFailForCancel:
		h.OnCancel()
		m.removeRecord(ctx, h)
	case jobqueue.RunResultTryAgain, jobqueue.RunResultFailShouldReRun:
		m.requeue(ctx, h, attempt)
	}
}

// requeue schedules another attempt, applying the job's retry
// constraint for delay, priority, and group overrides. The holder gets
// a fresh insertion order so it sorts behind existing peers.
func (m *Manager) requeue(ctx context.Context, h *jobqueue.JobHolder, attempt int) {
	c := h.RetryConstraint()

	delay, ok := c.DelayFor(attempt)
	if !ok {
		delay = m.policy.Next(attempt)
	}
	if p, ok := c.Priority(); ok {
		h.SetPriority(p)
	}
	if g, ok := c.GroupID(); ok {
		h.SetGroupID(g)
	}
	h.SetDelayUntilNs(time.Now().UnixNano() + delay.Nanoseconds())
	h.ClearInsertionOrder()

	m.mu.Lock()
	err := m.queue.Insert(h)
	m.mu.Unlock()
	if err != nil {
		m.logger.Error("requeue failed",
			slog.String("job_id", h.ID()),
			slog.String("error", err.Error()),
		)
		return
	}

	m.persist(ctx, h)
	m.logger.Debug("job requeued",
		slog.String("job_id", h.ID()),
		slog.Int("run_count", attempt),
		slog.Duration("delay", delay),
	)
	m.notify()
}

// wait blocks until new work may be available: a notify, the next
// delayed job coming due, or the idle poll interval.
func (m *Manager) wait() {
	nowNs := time.Now().UnixNano()
	d := m.cfg.IdlePollInterval

	m.mu.Lock()
	if next, ok := m.queue.NextDelayUntilNs(nowNs, m.monitor.Connected()); ok {
		if until := time.Duration(next - nowNs); until < d {
			d = until
		}
	}
	m.mu.Unlock()
	if d < time.Millisecond {
		d = time.Millisecond
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopCh:
	case <-m.notifyCh:
	case <-timer.C:
	}
}

// notify wakes one idle worker. Non-blocking; a pending wake is enough.
func (m *Manager) notify() {
	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

func (m *Manager) cancelActive() {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	for jobID, h := range m.active {
		m.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		h.MarkCancelled()
	}
}

func (m *Manager) persistable(h *jobqueue.JobHolder) bool {
	if m.store == nil {
		return false
	}
	_, ok := h.Job().(jobqueue.PersistentJob)
	return ok
}

// persist writes the holder's current state through to the store,
// inserting if the record is new.
func (m *Manager) persist(ctx context.Context, h *jobqueue.JobHolder) {
	if !m.persistable(h) {
		return
	}
	rec, err := h.Snapshot()
	if err != nil {
		m.logger.Error("snapshot failed", slog.String("job_id", h.ID()), slog.String("error", err.Error()))
		return
	}
	err = m.store.Update(ctx, rec)
	if errors.Is(err, jobqueue.ErrJobNotFound) {
		err = m.store.Insert(ctx, rec)
	}
	if err != nil {
		m.logger.Error("persist failed", slog.String("job_id", h.ID()), slog.String("error", err.Error()))
	}
}

// removeRecord drops the holder's persisted record, if any.
func (m *Manager) removeRecord(ctx context.Context, h *jobqueue.JobHolder) {
	if !m.persistable(h) {
		return
	}
	err := m.store.Remove(ctx, h.ID())
	if err != nil && !errors.Is(err, jobqueue.ErrJobNotFound) {
		m.logger.Error("record removal failed", slog.String("job_id", h.ID()), slog.String("error", err.Error()))
	}
}
