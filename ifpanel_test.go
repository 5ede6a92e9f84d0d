package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifpanel/edge"
	"ifpanel/mqtt"
	"ifpanel/panel"
)

const sample = `
client_id: panel1
source:
  type: sim
  queue: 0
buttons:
  - {name: back, pin: 19, track_release: true}
  - {name: pause, pin: 5, debounce: 50ms}
  - {name: ok, pin: 20, io_gnd: false, normally_closed: false}
encoders:
  - {name: wheel, pin_a: 6, pin_b: 13}
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, "panel1", cfg.ClientID)
	assert.Equal(t, "sim", cfg.Source.Type)
	require.NotNil(t, cfg.Source.Queue)
	assert.Equal(t, 0, *cfg.Source.Queue)
	assert.Equal(t, 120, cfg.PingSecs)

	require.Len(t, cfg.Buttons, 3)
	assert.Equal(t, 150*time.Millisecond, cfg.Buttons[0].debounce)
	assert.True(t, cfg.Buttons[0].TrackRelease)
	assert.Equal(t, 50*time.Millisecond, cfg.Buttons[1].debounce)
	assert.False(t, boolOr(cfg.Buttons[2].IOGnd, true))

	require.Len(t, cfg.Encoders, 1)
	assert.True(t, cfg.Encoders[0].GroundedCommon())
}

func TestLoadConfigDefaultsQueue(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("client_id: x\n"))
	require.NoError(t, err)
	assert.Equal(t, defaultQueue, *cfg.Source.Queue)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"no client":     "buttons: []\n",
		"bad debounce":  "client_id: x\nbuttons: [{name: a, pin: 1, debounce: soon}]\n",
		"neg debounce":  "client_id: x\nbuttons: [{name: a, pin: 1, debounce: -1s}]\n",
		"unnamed":       "client_id: x\nbuttons: [{pin: 1}]\n",
		"same pins":     "client_id: x\nencoders: [{name: w, pin_a: 3, pin_b: 3}]\n",
		"neg queue":     "client_id: x\nsource: {queue: -1}\n",
		"not yaml":      "client_id: [\n",
		"unnamed wheel": "client_id: x\nencoders: [{pin_a: 3, pin_b: 4}]\n",
	}
	for name, in := range tests {
		_, err := LoadConfig(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

type fakeIndicator struct {
	held   []int
	turned int
}

func (f *fakeIndicator) Idle()           {}
func (f *fakeIndicator) Held(n int)      { f.held = append(f.held, n) }
func (f *fakeIndicator) Turned()         { f.turned++ }
func (f *fakeIndicator) ConnectionLost() {}
func (f *fakeIndicator) Shutdown()       {}
func (f *fakeIndicator) Release() error  { return nil }

func TestAppRegistersAndHandles(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sample))
	require.NoError(t, err)

	sim := edge.NewSim()
	ind := &fakeIndicator{}
	client, err := mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{})
	require.NoError(t, err)
	app := &App{cfg: cfg, panel: panel.Open(sim), mqtt: client, indicator: ind, holding: make(map[string]bool)}
	defer app.panel.Close()

	require.NoError(t, app.register())
	assert.Equal(t, []string{"back", "ok", "pause"}, app.panel.Buttons())
	assert.Equal(t, []string{"wheel"}, app.panel.Encoders())

	pull, _ := sim.Pull(20)
	assert.Equal(t, edge.PullDown, pull)

	sim.Emit(19, 0, 1000)
	assert.Equal(t, []int{1}, ind.held)
	sim.Emit(19, 1, 2000)
	assert.Equal(t, []int{1, 0}, ind.held)

	// Untracked presses do not touch the held count.
	sim.Emit(5, 0, 3000)
	sim.Emit(5, 1, 4000)
	assert.Equal(t, []int{1, 0}, ind.held)

	sim.Emit(6, 0, 5000)
	sim.Emit(13, 0, 6000)
	assert.Equal(t, 2, ind.turned)
	pos, err := app.panel.Position("wheel")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	app.setPosition("wheel", 10)
	app.setPosition("missing", 10)
	pos, _ = app.panel.Position("wheel")
	assert.Equal(t, 10, pos)
}

func TestAppRegisterConflict(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
client_id: x
buttons:
  - {name: a, pin: 6}
encoders:
  - {name: wheel, pin_a: 6, pin_b: 13}
`))
	require.NoError(t, err)
	client, err := mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{})
	require.NoError(t, err)
	app := &App{cfg: cfg, panel: panel.Open(edge.NewSim()), mqtt: client, indicator: &fakeIndicator{}, holding: make(map[string]bool)}
	defer app.panel.Close()

	assert.ErrorIs(t, app.register(), panel.ErrPinInUse)
}

func TestHeldCountSurvivesLostRelease(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sample))
	require.NoError(t, err)

	sim := edge.NewSim()
	ind := &fakeIndicator{}
	client, err := mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{})
	require.NoError(t, err)
	app := &App{cfg: cfg, panel: panel.Open(sim), mqtt: client, indicator: ind, holding: make(map[string]bool)}
	defer app.panel.Close()
	require.NoError(t, app.register())

	// The release of the first press is never seen; the second press
	// supersedes it.
	sim.Emit(19, 0, 1000)
	sim.Emit(19, 0, 500000)
	sim.Emit(19, 1, 600000)
	assert.Equal(t, []int{1, 1, 0}, ind.held)
}
