package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/hjkoskel/govattu"
)

// blink is how long the activity LED inverts for one encoder step.
const blink = 30 * time.Millisecond

// GPIO implements Indicator using discrete GPIO LED pins. The activity LED
// is lit while any button is held and blinks on rotation; the status LED is
// lit while the panel is connected.
type GPIO struct {
	hw          govattu.Vattu
	activityPin *uint8
	statusPin   *uint8

	mu      sync.Mutex
	held    int
	blinkAt time.Time
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(activityPin, statusPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:          hw,
		activityPin: activityPin,
		statusPin:   statusPin,
	}
	for _, pin := range []*uint8{activityPin, statusPin} {
		if pin != nil {
			hw.PinMode(*pin, govattu.ALToutput)
			hw.PinClear(*pin)
		}
	}
	return g, nil
}

func (g *GPIO) set(pin *uint8, on bool) {
	if pin == nil {
		return
	}
	if on {
		g.hw.PinSet(*pin)
	} else {
		g.hw.PinClear(*pin)
	}
}

// Idle implements Indicator.Idle.
func (g *GPIO) Idle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = 0
	g.set(g.activityPin, false)
	g.set(g.statusPin, true)
}

// Held implements Indicator.Held.
func (g *GPIO) Held(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = n
	g.set(g.activityPin, n > 0)
}

// Turned implements Indicator.Turned.
func (g *GPIO) Turned() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Before(g.blinkAt) {
		return
	}
	g.blinkAt = now.Add(2 * blink)
	g.set(g.activityPin, g.held == 0)
	time.AfterFunc(blink, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.set(g.activityPin, g.held > 0)
	})
}

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(g.statusPin, false)
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(g.activityPin, false)
	g.set(g.statusPin, false)
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.Shutdown()
	return g.hw.Close()
}
