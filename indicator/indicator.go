// Package indicator drives the panel's status lights.
package indicator

// Indicator is the interface for status indicator implementations (LEDs, neopixels, etc).
type Indicator interface {
	// Idle sets the indicator to the ready state with nothing held.
	Idle()

	// Held is called whenever the number of buttons currently held changes.
	Held(n int)

	// Turned flashes the indicator for one encoder step.
	Turned()

	// ConnectionLost sets the indicator to connection lost state.
	ConnectionLost()

	// Shutdown sets the indicator to shutdown state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO LED pins (nil = not configured)
	ActivityPin *uint8 `yaml:"activity_pin"`
	StatusPin   *uint8 `yaml:"status_pin"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`
}

// New creates an Indicator based on the provided configuration.
// Returns a Multi indicator if both GPIO and Neopixel are configured.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator

	if cfg.ActivityPin != nil || cfg.StatusPin != nil {
		gpio, err := NewGPIO(cfg.ActivityPin, cfg.StatusPin)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, gpio)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, neo)
	}

	switch len(indicators) {
	case 0:
		return &Noop{}, nil
	case 1:
		return indicators[0], nil
	}
	return &Multi{indicators: indicators}, nil
}
