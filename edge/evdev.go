//go:build linux

package edge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kenshaw/evdev"
)

// Evdev is a Source backed by an input event device, such as the one the
// gpio-keys driver creates. Key codes stand in for pin numbers; a pressed
// key reads as level 0 and a released key as level 1. Bias is set by the
// device tree, so the pull passed to Watch is ignored.
type Evdev struct {
	dev    *evdev.Evdev
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	handlers map[int]Handler
	levels   map[int]int
	closed   bool
}

type evdevSub struct {
	e    *Evdev
	pin  int
	once sync.Once
}

// NewEvdev opens the input device at path and starts reading key events.
func NewEvdev(path string) (*Evdev, error) {
	dev, err := evdev.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", path, err)
	}
	log.Printf("Opened input device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Evdev{
		dev:      dev,
		start:    time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		handlers: make(map[int]Handler),
		levels:   make(map[int]int),
	}
	go e.poll(ctx)
	return e, nil
}

func (e *Evdev) poll(ctx context.Context) {
	defer close(e.done)
	ch := e.dev.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if event == nil {
				return
			}
			if _, ok := event.Type.(evdev.KeyType); !ok {
				continue
			}
			// Autorepeat (value 2) is not an edge.
			if event.Value != 0 && event.Value != 1 {
				continue
			}
			pin := int(event.Code)
			lvl := level(event.Value == 0)

			e.mu.Lock()
			h := e.handlers[pin]
			e.levels[pin] = lvl
			e.mu.Unlock()
			if h != nil {
				h(Event{Pin: pin, Level: lvl, Tick: TickAt(time.Since(e.start))})
			}
		}
	}
}

// Watch implements Source.Watch.
func (e *Evdev) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if _, ok := e.handlers[pin]; ok {
		return nil, ErrWatched
	}
	e.handlers[pin] = h
	return &evdevSub{e: e, pin: pin}, nil
}

// Read implements Source.Read. Keys that have not reported yet read as
// released.
func (e *Evdev) Read(pin int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	if lvl, ok := e.levels[pin]; ok {
		return lvl, nil
	}
	return 1, nil
}

// Close implements Source.Close.
func (e *Evdev) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.handlers = make(map[int]Handler)
	e.mu.Unlock()

	e.cancel()
	err := e.dev.Close()
	<-e.done
	return err
}

func (s *evdevSub) Cancel() error {
	s.once.Do(func() {
		s.e.mu.Lock()
		delete(s.e.handlers, s.pin)
		s.e.mu.Unlock()
	})
	return nil
}
