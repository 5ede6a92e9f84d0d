package edge

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph is a Source backed by periph.io. Each watched pin gets a goroutine
// blocked in WaitForEdge; ticks are taken when it wakes.
type Periph struct {
	start  time.Time
	mu     sync.Mutex
	pins   map[int]*periphSub
	closed bool
}

type periphSub struct {
	src  *Periph
	num  int
	pin  gpio.PinIO
	done chan struct{}
	once sync.Once
}

// NewPeriph initialises the periph.io host drivers.
func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &Periph{start: time.Now(), pins: make(map[int]*periphSub)}, nil
}

func lookup(pin int) (gpio.PinIO, error) {
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("no gpio %d", pin)
	}
	return p, nil
}

// Watch implements Source.Watch.
func (s *Periph) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, ok := s.pins[pin]; ok {
		return nil, ErrWatched
	}
	p, err := lookup(pin)
	if err != nil {
		return nil, err
	}
	bias := gpio.PullUp
	if pull == PullDown {
		bias = gpio.PullDown
	}
	if err := p.In(bias, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("gpio %d input: %w", pin, err)
	}
	sub := &periphSub{src: s, num: pin, pin: p, done: make(chan struct{})}
	s.pins[pin] = sub
	go sub.run(h)
	return sub, nil
}

func (w *periphSub) run(h Handler) {
	for {
		if !w.pin.WaitForEdge(-1) {
			select {
			case <-w.done:
				return
			default:
				continue
			}
		}
		select {
		case <-w.done:
			return
		default:
		}
		lvl := level(bool(w.pin.Read()))
		h(Event{Pin: w.num, Level: lvl, Tick: TickAt(time.Since(w.src.start))})
	}
}

// Read implements Source.Read.
func (s *Periph) Read(pin int) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	p, err := lookup(pin)
	if err != nil {
		return 0, err
	}
	return level(bool(p.Read())), nil
}

// Close implements Source.Close.
func (s *Periph) Close() error {
	s.mu.Lock()
	subs := make([]*periphSub, 0, len(s.pins))
	for _, p := range s.pins {
		subs = append(subs, p)
	}
	s.closed = true
	s.mu.Unlock()
	for _, p := range subs {
		p.Cancel()
	}
	return nil
}

func (w *periphSub) Cancel() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.pin.Halt()
		s := w.src
		s.mu.Lock()
		if s.pins[w.num] == w {
			delete(s.pins, w.num)
		}
		s.mu.Unlock()
	})
	return err
}
