package panel

import (
	"fmt"
	"log"
	"time"

	"ifpanel/button"
	"ifpanel/edge"
)

type buttonOpts struct {
	debounce       time.Duration
	ioGnd          bool
	normallyClosed bool
}

// ButtonOption configures a button registration.
type ButtonOption func(*buttonOpts)

// Debounce sets the minimum time between accepted presses.
func Debounce(d time.Duration) ButtonOption {
	return func(o *buttonOpts) { o.debounce = d }
}

// ButtonIOGnd sets whether the switch common is wired to ground (true) or to
// the supply.
func ButtonIOGnd(gnd bool) ButtonOption {
	return func(o *buttonOpts) { o.ioGnd = gnd }
}

// NormallyClosed sets the switch contact type.
func NormallyClosed(nc bool) ButtonOption {
	return func(o *buttonOpts) { o.normallyClosed = nc }
}

// AddButton registers a push-button on pin. down is called for every
// accepted press; if it returns button.FollowUp the release is reported too.
//
// Registering on a pin that already has a button replaces that button's
// configuration, discarding any press in progress. The name must not be used
// by a button on another pin.
func (p *Panel) AddButton(name string, down button.DownHandler, pin int, opts ...ButtonOption) error {
	o := buttonOpts{
		debounce:       button.DefaultDebounce,
		ioGnd:          true,
		normallyClosed: true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	rest := button.RestLevel(o.ioGnd, o.normallyClosed)
	pull := edge.PullFor(o.ioGnd)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	for bp, b := range p.buttons {
		if bp != pin && b.deb.Name() == name {
			return fmt.Errorf("button %q on pin %d: %w", name, bp, ErrNameConflict)
		}
	}
	if e := p.encPins[pin]; e != nil {
		return fmt.Errorf("button %q pin %d used by encoder %q: %w", name, pin, e.name, ErrPinInUse)
	}

	if b, ok := p.buttons[pin]; ok && b.pull == pull {
		b.deb.Reconfigure(name, down, rest, o.debounce)
		log.Printf("Button %q replaced on pin %d", name, pin)
		return nil
	} else if ok {
		// The bias changes, so the line has to be requested again.
		b.sub.Cancel()
		delete(p.buttons, pin)
		p.publish()
	}

	sub, err := p.src.Watch(pin, pull, p.enqueue)
	if err != nil {
		return fmt.Errorf("button %q pin %d: %w", name, pin, err)
	}
	p.buttons[pin] = &buttonEntry{
		deb:  button.New(name, down, rest, o.debounce),
		pull: pull,
		sub:  sub,
	}
	p.publish()
	log.Printf("Button %q on pin %d (%v, rest level %d, debounce %v)", name, pin, pull, rest, o.debounce)
	return nil
}
