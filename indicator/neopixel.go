package indicator

import (
	"fmt"
	"os"
	"sync"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoHeld           = "@1 !50000 8000"
	neoTurned         = "@0 !10000 404040"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	mu         sync.Mutex
	pipe       *os.File
	idleString string
	held       bool
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return &Neopixel{pipe: f, idleString: neoConnectionLost}, nil
}

// Idle implements Indicator.Idle. Reaching idle means the panel is up.
func (n *Neopixel) Idle() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idleString = neoNormalIdle
	n.held = false
	n.write(n.idleString)
}

// Held implements Indicator.Held.
func (n *Neopixel) Held(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if held := count > 0; held != n.held {
		n.held = held
		if held {
			n.write(neoHeld)
		} else {
			n.write(n.idleString)
		}
	}
}

// Turned implements Indicator.Turned.
func (n *Neopixel) Turned() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.held {
		n.write(neoTurned)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idleString = neoConnectionLost
	n.write(neoConnectionLost)
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) {
	if n.pipe != nil {
		n.pipe.Write([]byte(s))
	}
}
