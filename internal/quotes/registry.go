package quotes

import (
	"sync"

	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

// Listener is told the new authoritative identity after every successful registration.
type Listener func(latest Identity)

// Registry tracks the single authoritative quote. A registration only takes
// effect when it is newer than the recorded one, so a late-arriving older
// quote can never demote a newer one.
type Registry struct {
	mu        sync.Mutex
	latest    *Quote
	listeners []subscription
	nextSub   uint64
}

type subscription struct {
	id uint64
	fn Listener
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register records q as authoritative if it is newer than the current quote.
func (r *Registry) Register(q *Quote) bool {
	r.mu.Lock()
	if q == nil || q.ID == 0 || (r.latest != nil && q.ID <= r.latest.ID) {
		r.mu.Unlock()
		metrics.QuoteRegistrations.WithLabelValues("ignored").Inc()
		return false
	}
	r.latest = q
	listeners := r.snapshotLocked()
	r.mu.Unlock()

	metrics.QuoteRegistrations.WithLabelValues("authoritative").Inc()
	notify(listeners, q.ID)
	return true
}

// Supersede replaces prev with next only while prev is still authoritative.
func (r *Registry) Supersede(prev Identity, next *Quote) bool {
	r.mu.Lock()
	if next == nil || r.latest == nil || r.latest.ID != prev || next.ID <= prev {
		r.mu.Unlock()
		metrics.QuoteRegistrations.WithLabelValues("ignored").Inc()
		return false
	}
	r.latest = next
	listeners := r.snapshotLocked()
	r.mu.Unlock()

	metrics.QuoteRegistrations.WithLabelValues("refreshed").Inc()
	notify(listeners, next.ID)
	return true
}

func (r *Registry) IsAuthoritative(id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return id != 0 && r.latest != nil && r.latest.ID == id
}

// Latest returns the authoritative quote, if any has been registered.
func (r *Registry) Latest() (*Quote, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.latest != nil
}

// Subscribe adds fn to the listener set. Listeners run synchronously on the
// registering goroutine, outside the registry lock.
func (r *Registry) Subscribe(fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.listeners = append(r.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, sub := range r.listeners {
				if sub.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (r *Registry) snapshotLocked() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for _, sub := range r.listeners {
		out = append(out, sub.fn)
	}
	return out
}

func notify(listeners []Listener, latest Identity) {
	for _, fn := range listeners {
		fn(latest)
	}
}
