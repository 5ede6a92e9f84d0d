//go:build linux

package edge

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Chip is a Source backed by the GPIO character device. Edge timestamps
// come from the kernel, so ticks are accurate even when the handler runs
// late.
type Chip struct {
	name   string
	mu     sync.Mutex
	lines  map[int]*chipSub
	closed bool
}

type chipSub struct {
	chip *Chip
	pin  int
	line *gpiocdev.Line
	once sync.Once
}

// NewChip opens the named chip, e.g. "gpiochip0".
func NewChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", name, err)
	}
	log.Printf("GPIO chip %s (%s), %d lines", c.Name, c.Label, c.Lines())
	c.Close()
	return &Chip{name: name, lines: make(map[int]*chipSub)}, nil
}

// Watch implements Source.Watch.
func (c *Chip) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.lines[pin]; ok {
		return nil, ErrWatched
	}

	bias := gpiocdev.WithPullUp
	if pull == PullDown {
		bias = gpiocdev.WithPullDown
	}
	line, err := gpiocdev.RequestLine(c.name, pin,
		bias,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			var lvl int
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				lvl = 1
			case gpiocdev.LineEventFallingEdge:
				lvl = 0
			default:
				return
			}
			h(Event{Pin: evt.Offset, Level: lvl, Tick: TickAt(evt.Timestamp)})
		}))
	if err != nil {
		return nil, fmt.Errorf("request line %d: %w", pin, err)
	}
	sub := &chipSub{chip: c, pin: pin, line: line}
	c.lines[pin] = sub
	return sub, nil
}

// Read implements Source.Read. Unwatched pins are requested as inputs for
// the duration of the read.
func (c *Chip) Read(pin int) (int, error) {
	c.mu.Lock()
	sub, ok := c.lines[pin]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if ok {
		return sub.line.Value()
	}
	line, err := gpiocdev.RequestLine(c.name, pin, gpiocdev.AsInput)
	if err != nil {
		return 0, fmt.Errorf("request line %d: %w", pin, err)
	}
	defer line.Close()
	return line.Value()
}

// Close implements Source.Close.
func (c *Chip) Close() error {
	c.mu.Lock()
	subs := make([]*chipSub, 0, len(c.lines))
	for _, s := range c.lines {
		subs = append(subs, s)
	}
	c.closed = true
	c.mu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
	return nil
}

func (s *chipSub) Cancel() error {
	var err error
	s.once.Do(func() {
		c := s.chip
		c.mu.Lock()
		if c.lines[s.pin] == s {
			delete(c.lines, s.pin)
		}
		c.mu.Unlock()
		err = s.line.Close()
	})
	return err
}
