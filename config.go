package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v2"

	"ifpanel/button"
	"ifpanel/edge"
	"ifpanel/eventpipe"
	"ifpanel/indicator"
	"ifpanel/mqtt"
	"ifpanel/rotary"
)

const defaultQueue = 64

// Config is the main configuration structure for ifpanel.
type Config struct {
	// Edge source selection
	Source edge.Config `yaml:"source"`

	// Inputs
	Buttons  []ButtonConfig  `yaml:"buttons"`
	Encoders []rotary.Config `yaml:"encoders"`

	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// Bench-test command pipe
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	// General settings
	ClientID string `yaml:"client_id"`
	PingSecs int    `yaml:"ping_secs"`
}

// ButtonConfig describes one push-button.
type ButtonConfig struct {
	Name           string `yaml:"name"`
	Pin            int    `yaml:"pin"`
	Debounce       string `yaml:"debounce"`        // e.g. "150ms", default 150ms
	IOGnd          *bool  `yaml:"io_gnd"`          // common wired to ground, default true
	NormallyClosed *bool  `yaml:"normally_closed"` // default true
	TrackRelease   bool   `yaml:"track_release"`   // report release and hold time

	debounce time.Duration
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// LoadConfig decodes and validates a YAML configuration.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id missing in config file")
	}
	if cfg.Source.Queue == nil {
		q := defaultQueue
		cfg.Source.Queue = &q
	} else if *cfg.Source.Queue < 0 {
		return nil, fmt.Errorf("source queue %d: must not be negative", *cfg.Source.Queue)
	}
	if cfg.PingSecs == 0 {
		cfg.PingSecs = 120
	}

	for i := range cfg.Buttons {
		b := &cfg.Buttons[i]
		if b.Name == "" {
			return nil, fmt.Errorf("button %d: name missing", i)
		}
		b.debounce = button.DefaultDebounce
		if b.Debounce != "" {
			d, err := time.ParseDuration(b.Debounce)
			if err != nil {
				return nil, fmt.Errorf("button %q debounce: %w", b.Name, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("button %q debounce %v: must not be negative", b.Name, d)
			}
			b.debounce = d
		}
	}
	for i, e := range cfg.Encoders {
		if e.Name == "" {
			return nil, fmt.Errorf("encoder %d: name missing", i)
		}
		if e.PinA == e.PinB {
			return nil, fmt.Errorf("encoder %q: pin_a and pin_b are both %d", e.Name, e.PinA)
		}
	}
	return &cfg, nil
}
