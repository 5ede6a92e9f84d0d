// Package button turns the raw edges of one push-button line into debounced
// press and release events.
package button

import (
	"sync"
	"time"

	"ifpanel/edge"
)

// DefaultDebounce is the minimum spacing between accepted presses.
const DefaultDebounce = 150 * time.Millisecond

// UpHandler is called once when a tracked press is released, with the time
// the button was held.
type UpHandler func(name string, held time.Duration)

// PressResult is what a DownHandler returns: either no follow-up, or an
// UpHandler to call when the button is released.
type PressResult struct {
	up UpHandler
}

// NoFollowUp means the release of this press is not reported.
func NoFollowUp() PressResult { return PressResult{} }

// FollowUp asks for h to be called when this press is released.
func FollowUp(h UpHandler) PressResult { return PressResult{up: h} }

// Tracked reports whether the result carries an UpHandler.
func (r PressResult) Tracked() bool { return r.up != nil }

// DownHandler is called when a press is accepted.
type DownHandler func(name string) PressResult

// RestLevel returns the level of an idle button. A switch wired to ground
// through a normally closed contact rests high, as does a supply-wired
// normally open one.
//
//	io_gnd \ NC | true | false
//	true        |  1   |  0
//	false       |  0   |  1
func RestLevel(ioGnd, normallyClosed bool) int {
	if ioGnd == normallyClosed {
		return 1
	}
	return 0
}

// Debouncer is the press/release state machine for one pin.
type Debouncer struct {
	mu        sync.Mutex
	name      string
	down      DownHandler
	restLevel int
	window    edge.Tick
	primed    bool // a press edge has been seen
	lastPress edge.Tick
	downAt    edge.Tick
	pending   UpHandler
	// gen changes when a press is accepted or the button is reconfigured.
	gen      uint64
	inFlight bool // the down handler of press gen is running
	early    bool // press gen was released while its down handler ran
	upAt     edge.Tick
}

// New creates a Debouncer. A zero window accepts every press edge that is
// at least one tick after the previous one. The first press is always
// accepted.
func New(name string, down DownHandler, restLevel int, window time.Duration) *Debouncer {
	return &Debouncer{
		name:      name,
		down:      down,
		restLevel: restLevel,
		window:    edge.TicksOf(window),
	}
}

// Handle processes one edge. Handlers run without the lock held, so edges
// may be handled concurrently with a running down handler. A release seen
// while the down handler runs is reported as soon as it returns.
func (d *Debouncer) Handle(ev edge.Event) {
	d.mu.Lock()
	name := d.name

	if ev.Level != d.restLevel {
		sinceLast := edge.Since(d.lastPress, ev.Tick)
		// Bounces keep pushing the window out even when suppressed.
		bounced := d.primed && sinceLast <= d.window
		d.primed = true
		d.lastPress = ev.Tick
		if bounced {
			d.mu.Unlock()
			return
		}
		d.gen++
		gen := d.gen
		d.downAt = ev.Tick
		d.pending = nil
		d.inFlight = true
		d.early = false
		down := d.down
		d.mu.Unlock()

		var res PressResult
		if down != nil {
			res = down(name)
		}

		d.mu.Lock()
		if d.gen != gen {
			// Superseded by a newer press or a reconfiguration.
			d.mu.Unlock()
			return
		}
		d.inFlight = false
		if !d.early {
			d.pending = res.up
			d.mu.Unlock()
			return
		}
		held := edge.Since(d.downAt, d.upAt)
		d.mu.Unlock()
		if res.up != nil {
			res.up(name, held.Duration())
		}
		return
	}

	if d.inFlight && !d.early {
		d.early = true
		d.upAt = ev.Tick
		d.mu.Unlock()
		return
	}
	up := d.pending
	if up == nil {
		d.mu.Unlock()
		return
	}
	held := edge.Since(d.downAt, ev.Tick)
	d.pending = nil
	d.mu.Unlock()
	up(name, held.Duration())
}

// Name returns the button name.
func (d *Debouncer) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Pressed reports whether a tracked press is awaiting its release.
func (d *Debouncer) Pressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Reconfigure replaces the handler and wiring of an existing button and
// drops any press in progress.
func (d *Debouncer) Reconfigure(name string, down DownHandler, restLevel int, window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
	d.down = down
	d.restLevel = restLevel
	d.window = edge.TicksOf(window)
	d.gen++
	d.inFlight = false
	d.early = false
	d.primed = false
	d.lastPress = 0
	d.downAt = 0
	d.pending = nil
}

// RestLevel returns the configured idle level.
func (d *Debouncer) RestLevel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restLevel
}
