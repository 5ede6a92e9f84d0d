// Package panel owns the buttons and rotary encoders wired to one edge
// source and routes each edge to the instance registered on its pin.
package panel

import (
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ifpanel/button"
	"ifpanel/edge"
	"ifpanel/rotary"
)

var (
	ErrNameConflict   = errors.New("name is not unique")
	ErrSamePin        = errors.New("encoder pins must differ")
	ErrPinOverlap     = errors.New("pin shared with another rotary encoder")
	ErrPinInUse       = errors.New("pin already used by another input")
	ErrUnknownEncoder = errors.New("unknown rotary encoder")
	ErrClosed         = errors.New("panel closed")
)

type buttonEntry struct {
	deb  *button.Debouncer
	pull edge.Pull
	sub  edge.Subscription
}

type encoderEntry struct {
	name       string
	pinA, pinB int
	pull       edge.Pull
	dec        *rotary.Decoder
	subs       []edge.Subscription
}

func (e *encoderEntry) cancel() {
	for _, s := range e.subs {
		s.Cancel()
	}
}

// routes is an immutable pin lookup table read by Dispatch without locking,
// so an edge callback never waits on a registration in progress.
type routes struct {
	buttons  map[int]*buttonEntry
	encoders map[int]*encoderEntry
}

// Panel is the registry for one control panel.
type Panel struct {
	src       edge.Source
	ownSource bool
	queueLen  int

	mu       sync.RWMutex
	buttons  map[int]*buttonEntry
	encoders map[rotary.Key]*encoderEntry
	encPins  map[int]*encoderEntry
	closed   bool
	routes   atomic.Pointer[routes]

	queue    chan edge.Event
	stop     chan struct{}
	done     chan struct{}
	dropped  atomic.Uint64
	lastWarn atomic.Int64
	// dispatching is set while run is inside a handler.
	dispatching atomic.Bool
}

// Option configures a Panel.
type Option func(*Panel)

// WithSharedSource leaves the source open when the panel is closed.
func WithSharedSource() Option {
	return func(p *Panel) { p.ownSource = false }
}

// WithQueue hands edges from the source to a single dispatch goroutine
// through a queue of n events. With n == 0 edges are decoded on the
// source's callback goroutine.
func WithQueue(n int) Option {
	return func(p *Panel) { p.queueLen = n }
}

// Open creates a Panel on src. The panel closes src on Close unless
// WithSharedSource is given.
func Open(src edge.Source, opts ...Option) *Panel {
	p := &Panel{
		src:       src,
		ownSource: true,
		buttons:   make(map[int]*buttonEntry),
		encoders:  make(map[rotary.Key]*encoderEntry),
		encPins:   make(map[int]*encoderEntry),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.routes.Store(&routes{})
	if p.queueLen > 0 {
		p.queue = make(chan edge.Event, p.queueLen)
		go p.run()
	} else {
		close(p.done)
	}
	return p
}

func (p *Panel) run() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.queue:
			p.dispatching.Store(true)
			p.Dispatch(ev)
			p.dispatching.Store(false)
		case <-p.stop:
			return
		}
	}
}

// enqueue is the handler given to the source for every watched pin.
func (p *Panel) enqueue(ev edge.Event) {
	if p.queue == nil {
		p.Dispatch(ev)
		return
	}
	select {
	case <-p.stop:
	case p.queue <- ev:
	default:
		n := p.dropped.Add(1)
		now := time.Now().UnixNano()
		last := p.lastWarn.Load()
		if now-last > int64(time.Second) && p.lastWarn.CompareAndSwap(last, now) {
			log.Printf("Panel queue full, dropped %d edges so far (%v)", n, ev)
		}
	}
}

// Dispatch routes one edge to the button or encoder on its pin. Edges on
// unregistered pins are ignored.
func (p *Panel) Dispatch(ev edge.Event) {
	r := p.routes.Load()
	if b := r.buttons[ev.Pin]; b != nil {
		b.deb.Handle(ev)
	} else if e := r.encoders[ev.Pin]; e != nil {
		e.dec.Handle(ev)
	}
}

// publish replaces the routing table. p.mu must be held.
func (p *Panel) publish() {
	r := &routes{
		buttons:  make(map[int]*buttonEntry, len(p.buttons)),
		encoders: make(map[int]*encoderEntry, len(p.encPins)),
	}
	for pin, b := range p.buttons {
		r.buttons[pin] = b
	}
	for pin, e := range p.encPins {
		r.encoders[pin] = e
	}
	p.routes.Store(r)
}

// Dropped returns how many edges were discarded because the queue was full.
func (p *Panel) Dropped() uint64 {
	return p.dropped.Load()
}

// Close cancels every subscription and, if the panel owns it, closes the
// edge source. It is safe to call more than once, and from a handler. With
// a queue, Close waits for the dispatch goroutine to stop unless a handler
// is running on it at the time; that handler finishes after Close returns.
func (p *Panel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	buttons, encoders := p.buttons, p.encoders
	p.buttons = make(map[int]*buttonEntry)
	p.encoders = make(map[rotary.Key]*encoderEntry)
	p.encPins = make(map[int]*encoderEntry)
	p.publish()
	p.mu.Unlock()

	for _, e := range encoders {
		e.cancel()
	}
	for _, b := range buttons {
		b.sub.Cancel()
	}
	close(p.stop)
	if !p.dispatching.Load() {
		<-p.done
	}

	log.Printf("Panel closed (%d buttons, %d encoders)", len(buttons), len(encoders))
	if !p.ownSource {
		return nil
	}
	return p.src.Close()
}

// Buttons returns the registered button names, sorted.
func (p *Panel) Buttons() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.buttons))
	for _, b := range p.buttons {
		names = append(names, b.deb.Name())
	}
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Encoders returns the registered encoder names, sorted.
func (p *Panel) Encoders() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.encoders))
	for _, e := range p.encoders {
		names = append(names, e.name)
	}
	p.mu.RUnlock()
	sort.Strings(names)
	return names
}
