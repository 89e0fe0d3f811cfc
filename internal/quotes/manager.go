package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

// Refresher re-prices prev. The returned quote must not carry an identity yet.
type Refresher interface {
	Refresh(ctx context.Context, prev *Quote) (*Quote, error)
}

type RefreshFunc func(ctx context.Context, prev *Quote) (*Quote, error)

func (f RefreshFunc) Refresh(ctx context.Context, prev *Quote) (*Quote, error) { return f(ctx, prev) }

const DefaultRefreshInterval = 30 * time.Second

// Manager runs refresh tasks for displayed quotes. Each task is keyed by the
// identity it refreshes and is cancelled as soon as that identity is demoted.
type Manager struct {
	registry *Registry
	clock    *Clock
	interval time.Duration
	log      *logrus.Entry
	// after is time.After; tests replace it to drive refreshes by hand.
	after func(time.Duration) <-chan time.Time

	mu    sync.Mutex
	tasks map[Identity]context.CancelFunc
}

func NewManager(registry *Registry, clock *Clock, interval time.Duration, logger *logrus.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		registry: registry,
		clock:    clock,
		interval: interval,
		log:      logger.WithField("component", "quote_sessions"),
		after:    time.After,
		tasks:    map[Identity]context.CancelFunc{},
	}
	registry.Subscribe(m.demote)
	return m
}

// demote cancels every task whose identity is no longer authoritative. The
// registry is asked per task: notifications run outside its lock and may
// arrive after a newer quote was registered and tracked.
func (m *Manager) demote(Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.tasks {
		if !m.registry.IsAuthoritative(id) {
			cancel()
			delete(m.tasks, id)
			metrics.ActiveQuoteSessions.Dec()
		}
	}
}

func (m *Manager) track(id Identity, cancel context.CancelFunc) {
	m.mu.Lock()
	m.tasks[id] = cancel
	m.mu.Unlock()
	metrics.ActiveQuoteSessions.Inc()
}

func (m *Manager) cancel(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.tasks[id]; ok {
		cancel()
		delete(m.tasks, id)
		metrics.ActiveQuoteSessions.Dec()
	}
}

// Open stamps q if it has no identity yet, registers it and starts refreshing
// it while it stays authoritative.
func (m *Manager) Open(q *Quote, refresher Refresher) *Session {
	if q.ID == 0 {
		m.clock.Stamp(q)
	}
	s := &Session{m: m, refresher: refresher, current: q, done: make(chan struct{})}
	if !m.registry.Register(q) {
		s.finish()
		return s
	}
	s.schedule(q)
	return s
}

// Session is the refresh loop of one displayed quote and its successors.
type Session struct {
	m         *Manager
	refresher Refresher

	// gate serializes the paused check with Supersede so a paused session never replaces its quote.
	gate sync.Mutex

	mu      sync.Mutex
	current *Quote
	paused  bool
	closed  bool
	done    chan struct{}
}

// Current is the latest quote this session produced.
func (s *Session) Current() *Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Authoritative() bool {
	return s.m.registry.IsAuthoritative(s.Current().ID)
}

// Done is closed once the session stops for good, by demotion or Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// Pause suspends refreshing, e.g. while an order against the quote is in flight.
func (s *Session) Pause() {
	s.gate.Lock()
	defer s.gate.Unlock()
	s.mu.Lock()
	s.paused = true
	id := s.current.ID
	s.mu.Unlock()
	s.m.cancel(id)
}

// Resume restarts refreshing if the quote is still authoritative, and ends the session otherwise.
func (s *Session) Resume() {
	s.mu.Lock()
	if s.closed || !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	q := s.current
	s.mu.Unlock()

	if !s.m.registry.IsAuthoritative(q.ID) {
		s.finish()
		return
	}
	s.schedule(q)
}

func (s *Session) Close() {
	s.mu.Lock()
	id := s.current.ID
	s.mu.Unlock()
	s.m.cancel(id)
	s.finish()
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Session) schedule(q *Quote) {
	ctx, cancel := context.WithCancel(context.Background())
	s.m.track(q.ID, cancel)
	// A newer quote may have landed between registration and tracking.
	if !s.m.registry.IsAuthoritative(q.ID) {
		s.m.cancel(q.ID)
		s.finish()
		return
	}
	go s.run(ctx, q)
}

func (s *Session) run(ctx context.Context, q *Quote) {
	log := s.m.log.WithField("quote_id", uint64(q.ID))
	select {
	case <-ctx.Done():
		s.stopIfDemoted(q)
		return
	case <-s.m.after(s.m.interval):
	}
	if ctx.Err() != nil || !s.m.registry.IsAuthoritative(q.ID) {
		metrics.QuoteRefreshes.WithLabelValues("demoted").Inc()
		s.stopIfDemoted(q)
		return
	}

	next, err := s.refresher.Refresh(ctx, q)
	if ctx.Err() != nil {
		metrics.QuoteRefreshes.WithLabelValues("cancelled").Inc()
		s.stopIfDemoted(q)
		return
	}
	if err != nil {
		metrics.QuoteRefreshes.WithLabelValues("error").Inc()
		log.WithError(err).Warn("quote refresh failed, keeping current quote")
		s.m.cancel(q.ID)
		s.reschedule(q)
		return
	}

	s.gate.Lock()
	s.mu.Lock()
	paused := s.paused || s.closed
	s.mu.Unlock()
	if paused {
		s.gate.Unlock()
		metrics.QuoteRefreshes.WithLabelValues("cancelled").Inc()
		return
	}
	next.ID = 0
	next.CreatedAt = time.Time{}
	s.m.clock.Stamp(next)
	replaced := s.m.registry.Supersede(q.ID, next)
	if replaced {
		s.mu.Lock()
		s.current = next
		s.mu.Unlock()
	}
	s.gate.Unlock()

	s.m.cancel(q.ID)
	if !replaced {
		metrics.QuoteRefreshes.WithLabelValues("demoted").Inc()
		s.finish()
		return
	}
	metrics.QuoteRefreshes.WithLabelValues("refreshed").Inc()
	log.WithField("next_id", uint64(next.ID)).Debug("quote refreshed")
	s.reschedule(next)
}

func (s *Session) reschedule(q *Quote) {
	s.mu.Lock()
	stopped := s.paused || s.closed
	s.mu.Unlock()
	if stopped {
		return
	}
	s.schedule(q)
}

// stopIfDemoted ends the session when the cancellation came from demotion rather than Pause.
func (s *Session) stopIfDemoted(q *Quote) {
	if !s.m.registry.IsAuthoritative(q.ID) {
		s.finish()
	}
}
