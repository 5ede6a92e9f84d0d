// Package rotary decodes the two phase outputs of a quadrature rotary
// encoder into a relative position.
package rotary

import (
	"fmt"
	"sync"

	"ifpanel/edge"
)

// Key is the canonical (sorted) identity of an encoder's pin pair.
type Key struct {
	Lo, Hi int
}

// KeyOf returns the canonical key for two pins.
func KeyOf(a, b int) Key {
	if b < a {
		a, b = b, a
	}
	return Key{Lo: a, Hi: b}
}

// Has reports whether pin is part of the pair.
func (k Key) Has(pin int) bool {
	return pin == k.Lo || pin == k.Hi
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", k.Lo, k.Hi)
}

// Config holds configuration for a rotary encoder.
type Config struct {
	Name  string `yaml:"name"`
	PinA  int    `yaml:"pin_a"`
	PinB  int    `yaml:"pin_b"`
	IOGnd *bool  `yaml:"io_gnd"` // common wired to ground, default true
}

// Handler is called with the new position and +1 or -1 on every accepted
// edge.
type Handler func(position int, direction int)

// Decoder tracks one encoder. Direction is inferred from whether the pin that
// just changed now differs from the other pin's last level, so a missed edge
// shifts the position by one step without being detected.
type Decoder struct {
	mu       sync.Mutex
	key      Key
	levels   map[int]int
	lastPin  int
	havePin  bool
	position int
	onTurn   Handler
}

// New creates a Decoder for pins a and b with their current levels.
func New(a, b int, levelA, levelB int, onTurn Handler) *Decoder {
	return &Decoder{
		key:    KeyOf(a, b),
		levels: map[int]int{a: levelA, b: levelB},
		onTurn: onTurn,
	}
}

// Key returns the canonical pin pair.
func (d *Decoder) Key() Key {
	return d.key
}

// Handle processes one edge. Events for pins outside the pair are ignored.
func (d *Decoder) Handle(ev edge.Event) {
	if !d.key.Has(ev.Pin) {
		return
	}
	d.mu.Lock()
	// Real quadrature edges alternate pins; a repeat is a glitch or a
	// duplicate callback.
	if d.havePin && ev.Pin == d.lastPin {
		d.mu.Unlock()
		return
	}
	d.havePin = true
	d.lastPin = ev.Pin
	d.levels[ev.Pin] = ev.Level

	other, factor := d.key.Hi, 1
	if ev.Pin == d.key.Hi {
		other, factor = d.key.Lo, -1
	}
	dir := -factor
	if ev.Level != d.levels[other] {
		dir = factor
	}
	d.position += dir
	pos := d.position
	onTurn := d.onTurn
	d.mu.Unlock()

	if onTurn != nil {
		onTurn(pos, dir)
	}
}

// Position returns the current position.
func (d *Decoder) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// SetPosition overwrites the position. Decoding continues from the pins'
// physical state.
func (d *Decoder) SetPosition(n int) {
	d.mu.Lock()
	d.position = n
	d.mu.Unlock()
}

// SetHandler replaces the rotation callback.
func (d *Decoder) SetHandler(h Handler) {
	d.mu.Lock()
	d.onTurn = h
	d.mu.Unlock()
}

// GroundedCommon reports whether the encoder common is wired to ground.
func (c Config) GroundedCommon() bool {
	return c.IOGnd == nil || *c.IOGnd
}
