// Package network provides connectivity monitoring for the manager.
// Holders whose jobs require network are held back while the monitor
// reports no connectivity; an event-driven Notifier wakes the manager
// the moment connectivity returns instead of waiting for a poll.
package network

import (
	"log/slog"
	"net"
	"sync"
	"time"
)

// Monitor reports current network availability.
type Monitor interface {
	Connected() bool
}

// Listener is notified when connectivity changes.
type Listener func(connected bool)

// Static is a fixed-state Monitor. Static(true) is the default used by
// a manager with no monitor configured.
type Static bool

// Connected returns the fixed state.
func (s Static) Connected() bool { return bool(s) }

// Notifier is a settable Monitor that fans state changes out to
// subscribed listeners. Safe for concurrent use.
type Notifier struct {
	mu        sync.Mutex
	connected bool
	listeners []Listener
}

// NewNotifier creates a Notifier with the given initial state.
func NewNotifier(connected bool) *Notifier {
	return &Notifier{connected: connected}
}

// Connected reports the last set state.
func (n *Notifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// Set updates the state and notifies listeners on a change.
func (n *Notifier) Set(connected bool) {
	n.mu.Lock()
	changed := n.connected != connected
	n.connected = connected
	listeners := n.listeners
	n.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(connected)
	}
}

// Subscribe registers a listener for state changes.
func (n *Notifier) Subscribe(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Poller probes a dial target on an interval and feeds the result into
// an embedded Notifier.
type Poller struct {
	*Notifier

	target   string
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the probe interval. Default 30s.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithTimeout sets the per-probe dial timeout. Default 5s.
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller probing the given "host:port" target.
// Call Start to begin probing.
func NewPoller(target string, opts ...PollerOption) *Poller {
	p := &Poller{
		Notifier: NewNotifier(true),
		target:   target,
		interval: 30 * time.Second,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start probes once immediately, then on every interval tick until
// Stop is called.
func (p *Poller) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.probe()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.probe()
			}
		}
	}()
}

// Stop halts probing and waits for the probe goroutine to exit.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Poller) probe() {
	conn, err := net.DialTimeout("tcp", p.target, p.timeout)
	if err != nil {
		if p.Connected() {
			p.logger.Warn("network unreachable",
				slog.String("target", p.target),
				slog.String("error", err.Error()),
			)
		}
		p.Set(false)
		return
	}
	_ = conn.Close()
	p.Set(true)
}
