// Package notify fans out "department cache changed" signals to in-process
// subscribers.
package notify

import "sync"

// Subscription receives a signal after every committed change to one
// department. Signals coalesce: a subscriber that has not drained the
// previous signal sees a single pending one.
type Subscription struct {
	department string
	ch         chan struct{}
	hub        *Hub
	once       sync.Once
}

func (s *Subscription) C() <-chan struct{} { return s.ch }

func (s *Subscription) Department() string { return s.department }

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
	// forward is called for every local Publish, e.g. to mirror the signal
	// to other instances.
	forward func(department string)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// OnPublish registers fn to be called after every Publish. Deliver does not
// call it, so relayed signals are not forwarded again.
func (h *Hub) OnPublish(fn func(department string)) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}

func (h *Hub) Subscribe(department string) *Subscription {
	s := &Subscription{department: department, ch: make(chan struct{}, 1), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[department]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[department] = set
	}
	set[s] = struct{}{}
	return s
}

// Publish signals local subscribers and forwards the signal.
func (h *Hub) Publish(department string) {
	h.Deliver(department)

	h.mu.RLock()
	fwd := h.forward
	h.mu.RUnlock()
	if fwd != nil {
		fwd(department)
	}
}

// Deliver signals local subscribers only.
func (h *Hub) Deliver(department string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[department] {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports how many subscriptions are open for department.
func (h *Hub) Subscribers(department string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[department])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.department]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.department)
	}
}
