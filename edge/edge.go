// Package edge delivers GPIO level transitions with a wrapping microsecond
// timestamp. Backends exist for the GPIO character device, the legacy
// register/sysfs watcher and periph.io, plus an in-memory simulator.
package edge

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Tick is a 32-bit microsecond counter. It wraps to 0 after 2^32-1.
type Tick uint32

// Since returns the ticks elapsed from from to to, allowing for one wrap of
// the counter. The result is never negative.
func Since(from, to Tick) Tick {
	// Unsigned subtraction is already modulo 2^32.
	return to - from
}

// Seconds converts a tick count to seconds.
func (t Tick) Seconds() float64 {
	return float64(t) / 1e6
}

// Duration converts a tick count to a time.Duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Microsecond
}

// TicksOf converts d to ticks, saturating at the largest representable count.
func TicksOf(d time.Duration) Tick {
	us := d.Microseconds()
	if us <= 0 {
		return 0
	}
	if us > math.MaxUint32 {
		return math.MaxUint32
	}
	return Tick(us)
}

// TickAt truncates a monotonic timestamp to the wrapping tick clock.
func TickAt(ts time.Duration) Tick {
	return Tick(uint64(ts.Microseconds()))
}

// Event is one level change on a pin.
type Event struct {
	Pin   int
	Level int // 0 or 1
	Tick  Tick
}

func (e Event) String() string {
	return fmt.Sprintf("pin %d level %d tick %d", e.Pin, e.Level, e.Tick)
}

// Handler receives edge events. It is called on a context owned by the
// source and must return quickly.
type Handler func(Event)

// Pull selects the input bias resistor.
type Pull int

const (
	PullUp Pull = iota
	PullDown
)

// PullFor returns the bias for a switch whose common is wired to ground
// (ioGnd) or to the supply.
func PullFor(ioGnd bool) Pull {
	if ioGnd {
		return PullUp
	}
	return PullDown
}

func (p Pull) String() string {
	if p == PullDown {
		return "pull-down"
	}
	return "pull-up"
}

// Subscription is a registered watch on one pin.
type Subscription interface {
	// Cancel stops delivery. Calling it more than once is a no-op.
	Cancel() error
}

// Source is a connection to the GPIO edge provider.
type Source interface {
	// Watch configures pin as a biased input and delivers both edges to h.
	Watch(pin int, pull Pull, h Handler) (Subscription, error)

	// Read returns the current level of pin.
	Read(pin int) (int, error)

	// Close cancels every subscription and releases the connection.
	Close() error
}

var (
	ErrNotSupported = errors.New("edge source not supported on this platform")
	ErrWatched      = errors.New("pin already watched")
	ErrClosed       = errors.New("edge source closed")
)

// Config selects and configures a Source.
type Config struct {
	Type   string `yaml:"type"`   // "gpiocdev", "sysfs", "periph", "evdev", "sim"
	Chip   string `yaml:"chip"`   // gpiocdev chip, e.g. "gpiochip0"
	Device string `yaml:"device"` // evdev input device, e.g. "/dev/input/event0"
	Queue  *int   `yaml:"queue"`  // dispatch queue depth, nil = default
}

// New creates a Source based on the provided configuration.
func New(cfg Config) (Source, error) {
	switch cfg.Type {
	case "", "gpiocdev":
		if cfg.Chip == "" {
			cfg.Chip = "gpiochip0"
		}
		return NewChip(cfg.Chip)
	case "sysfs":
		return NewSysfs()
	case "periph":
		return NewPeriph()
	case "evdev":
		if cfg.Device == "" {
			return nil, fmt.Errorf("evdev source requires a device")
		}
		return NewEvdev(cfg.Device)
	case "sim":
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown edge source type %q", cfg.Type)
	}
}

func level(b bool) int {
	if b {
		return 1
	}
	return 0
}
