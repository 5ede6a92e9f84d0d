package panel

import (
	"fmt"
	"log"

	"ifpanel/edge"
	"ifpanel/rotary"
)

type encoderOpts struct {
	ioGnd bool
}

// EncoderOption configures a rotary encoder registration.
type EncoderOption func(*encoderOpts)

// EncoderIOGnd sets whether the encoder common is wired to ground (true) or
// to the supply.
func EncoderIOGnd(gnd bool) EncoderOption {
	return func(o *encoderOpts) { o.ioGnd = gnd }
}

// AddRotaryEncoder registers a quadrature encoder on pinA and pinB. An
// encoder already on the same pair is closed and replaced, keeping its
// position; if the new one cannot be set up the old one is put back. Neither
// pin may belong to a different encoder.
func (p *Panel) AddRotaryEncoder(name string, onTurn rotary.Handler, pinA, pinB int, opts ...EncoderOption) error {
	if pinA == pinB {
		return fmt.Errorf("encoder %q pin %d: %w", name, pinA, ErrSamePin)
	}
	o := encoderOpts{ioGnd: true}
	for _, fn := range opts {
		fn(&o)
	}
	key := rotary.KeyOf(pinA, pinB)
	pull := edge.PullFor(o.ioGnd)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	for k, e := range p.encoders {
		if k == key {
			continue
		}
		if k.Has(pinA) || k.Has(pinB) {
			return fmt.Errorf("encoder %q %v overlaps %q %v: %w", name, key, e.name, k, ErrPinOverlap)
		}
		if e.name == name {
			return fmt.Errorf("encoder %q: %w", name, ErrNameConflict)
		}
	}
	for _, pin := range []int{key.Lo, key.Hi} {
		if b := p.buttons[pin]; b != nil {
			return fmt.Errorf("encoder %q pin %d used by button %q: %w", name, pin, b.deb.Name(), ErrPinInUse)
		}
	}

	old := p.encoders[key]
	position := 0
	if old != nil {
		position = old.dec.Position()
		old.cancel()
		p.unregister(key)
		log.Printf("Encoder %q %v closed for replacement", old.name, key)
	}

	e := &encoderEntry{name: name, pull: pull}
	levels, err := p.watchEncoder(e, pinA, pinB)
	if err != nil {
		err = fmt.Errorf("encoder %q: %w", name, err)
		if old != nil {
			if _, rerr := p.watchEncoder(old, old.pinA, old.pinB); rerr != nil {
				log.Printf("Encoder %q %v not restored: %v", old.name, key, rerr)
				return err
			}
			p.register(key, old)
			log.Printf("Encoder %q %v restored", old.name, key)
		}
		return err
	}
	e.pinA, e.pinB = pinA, pinB
	e.dec = rotary.New(pinA, pinB, levels[0], levels[1], onTurn)
	e.dec.SetPosition(position)
	p.register(key, e)
	log.Printf("Rotary encoder %q on pins %v (%v)", name, key, pull)
	return nil
}

// watchEncoder subscribes both pins of e with its pull and reads their
// levels once the bias is applied. On failure nothing stays subscribed.
func (p *Panel) watchEncoder(e *encoderEntry, pinA, pinB int) ([2]int, error) {
	var levels [2]int
	e.subs = nil
	for _, pin := range []int{pinA, pinB} {
		sub, err := p.src.Watch(pin, e.pull, p.enqueue)
		if err != nil {
			e.cancel()
			return levels, fmt.Errorf("pin %d: %w", pin, err)
		}
		e.subs = append(e.subs, sub)
	}
	for i, pin := range []int{pinA, pinB} {
		lvl, err := p.src.Read(pin)
		if err != nil {
			e.cancel()
			return levels, fmt.Errorf("read pin %d: %w", pin, err)
		}
		levels[i] = lvl
	}
	return levels, nil
}

// register adds e under key and publishes the routes. p.mu must be held.
// Edges arriving before the routes are published are dropped.
func (p *Panel) register(key rotary.Key, e *encoderEntry) {
	p.encoders[key] = e
	p.encPins[key.Lo] = e
	p.encPins[key.Hi] = e
	p.publish()
}

// unregister removes the encoder under key. p.mu must be held.
func (p *Panel) unregister(key rotary.Key) {
	delete(p.encoders, key)
	delete(p.encPins, key.Lo)
	delete(p.encPins, key.Hi)
	p.publish()
}

func (p *Panel) findEncoder(name string) (*encoderEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.encoders {
		if e.name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEncoder, name)
}

// Position returns the position of the named encoder.
func (p *Panel) Position(name string) (int, error) {
	e, err := p.findEncoder(name)
	if err != nil {
		return 0, err
	}
	return e.dec.Position(), nil
}

// SetPosition overwrites the position of the named encoder.
func (p *Panel) SetPosition(name string, position int) error {
	e, err := p.findEncoder(name)
	if err != nil {
		return err
	}
	e.dec.SetPosition(position)
	return nil
}
