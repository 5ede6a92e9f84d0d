//go:build linux

package edge

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpio"
)

// Sysfs is a Source backed by the Raspberry Pi register map for levels and
// the sysfs edge interface for interrupts. The kernel does not timestamp
// these edges, so ticks are taken when the watcher goroutine wakes.
type Sysfs struct {
	start  time.Time
	mu     sync.Mutex
	pins   map[int]*sysfsSub
	closed bool
}

type sysfsSub struct {
	src  *Sysfs
	pin  *gpio.Pin
	once sync.Once
}

// NewSysfs maps the GPIO registers. Only one Sysfs may be open at a time.
func NewSysfs() (*Sysfs, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return &Sysfs{start: time.Now(), pins: make(map[int]*sysfsSub)}, nil
}

func (s *Sysfs) now() Tick {
	return TickAt(time.Since(s.start))
}

// Watch implements Source.Watch.
func (s *Sysfs) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.pins[pin]; ok {
		return nil, ErrWatched
	}
	p := gpio.NewPin(pin)
	p.Input()
	if pull == PullDown {
		p.PullDown()
	} else {
		p.PullUp()
	}
	err := p.Watch(gpio.EdgeBoth, func(p *gpio.Pin) {
		h(Event{Pin: p.Pin(), Level: level(bool(p.Read())), Tick: s.now()})
	})
	if err != nil {
		return nil, fmt.Errorf("watch pin %d: %w", pin, err)
	}
	sub := &sysfsSub{src: s, pin: p}
	s.pins[pin] = sub
	return sub, nil
}

// Read implements Source.Read.
func (s *Sysfs) Read(pin int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return level(bool(gpio.NewPin(pin).Read())), nil
}

// Close implements Source.Close and unmaps the registers.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	subs := make([]*sysfsSub, 0, len(s.pins))
	for _, p := range s.pins {
		subs = append(subs, p)
	}
	s.closed = true
	s.mu.Unlock()
	for _, p := range subs {
		p.Cancel()
	}
	return gpio.Close()
}

func (w *sysfsSub) Cancel() error {
	w.once.Do(func() {
		w.pin.Unwatch()
		s := w.src
		s.mu.Lock()
		if s.pins[w.pin.Pin()] == w {
			delete(s.pins, w.pin.Pin())
		}
		s.mu.Unlock()
	})
	return nil
}
