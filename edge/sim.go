package edge

import (
	"sync"
)

// Sim is an in-memory Source. Edges are injected with Emit and delivered
// synchronously on the caller's goroutine.
type Sim struct {
	mu       sync.Mutex
	levels   map[int]int
	pulls    map[int]Pull
	watchers map[int]*simSub
	closed   bool
	cancels  int
}

type simSub struct {
	sim       *Sim
	pin       int
	h         Handler
	cancelled bool
}

// NewSim creates a simulator with every pin at level 0.
func NewSim() *Sim {
	return &Sim{
		levels:   make(map[int]int),
		pulls:    make(map[int]Pull),
		watchers: make(map[int]*simSub),
	}
}

// Watch implements Source.Watch. A pull-up pin that has never been Set
// idles high.
func (s *Sim) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.watchers[pin]; ok {
		return nil, ErrWatched
	}
	s.pulls[pin] = pull
	if _, ok := s.levels[pin]; !ok && pull == PullUp {
		s.levels[pin] = 1
	}
	sub := &simSub{sim: s, pin: pin, h: h}
	s.watchers[pin] = sub
	return sub, nil
}

// Read implements Source.Read.
func (s *Sim) Read(pin int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.levels[pin], nil
}

// Close implements Source.Close.
func (s *Sim) Close() error {
	s.mu.Lock()
	subs := make([]*simSub, 0, len(s.watchers))
	for _, w := range s.watchers {
		subs = append(subs, w)
	}
	s.closed = true
	s.mu.Unlock()
	for _, w := range subs {
		w.Cancel()
	}
	return nil
}

// Set changes the level of pin without generating an edge.
func (s *Sim) Set(pin, lvl int) {
	s.mu.Lock()
	s.levels[pin] = lvl
	s.mu.Unlock()
}

// Emit sets pin to lvl and delivers the edge to its watcher, if any.
// It reports whether a watcher received the event.
func (s *Sim) Emit(pin, lvl int, tick Tick) bool {
	s.mu.Lock()
	s.levels[pin] = lvl
	w := s.watchers[pin]
	s.mu.Unlock()
	if w == nil {
		return false
	}
	w.h(Event{Pin: pin, Level: lvl, Tick: tick})
	return true
}

// Pull returns the bias last requested for pin.
func (s *Sim) Pull(pin int) (Pull, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulls[pin]
	return p, ok
}

// Watched reports whether pin has a live subscription.
func (s *Sim) Watched(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watchers[pin]
	return ok
}

// Cancels returns how many subscriptions have been cancelled.
func (s *Sim) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// Closed reports whether Close has been called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (w *simSub) Cancel() error {
	s := w.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.cancelled {
		return nil
	}
	w.cancelled = true
	s.cancels++
	if s.watchers[w.pin] == w {
		delete(s.watchers, w.pin)
	}
	return nil
}
