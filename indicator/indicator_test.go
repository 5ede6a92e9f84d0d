package indicator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fake struct {
	calls []string
	held  []int
	err   error
}

func (f *fake) Idle()           { f.calls = append(f.calls, "idle") }
func (f *fake) Held(n int)      { f.calls = append(f.calls, "held"); f.held = append(f.held, n) }
func (f *fake) Turned()         { f.calls = append(f.calls, "turned") }
func (f *fake) ConnectionLost() { f.calls = append(f.calls, "lost") }
func (f *fake) Shutdown()       { f.calls = append(f.calls, "shutdown") }
func (f *fake) Release() error  { f.calls = append(f.calls, "release"); return f.err }

func TestNewNoop(t *testing.T) {
	ind, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Noop{}, ind)
	assert.NoError(t, ind.Release())
}

func TestMultiFansOut(t *testing.T) {
	a, b := &fake{}, &fake{err: errors.New("busy")}
	m := &Multi{indicators: []Indicator{a, b}}
	m.Idle()
	m.Held(2)
	m.Turned()
	m.ConnectionLost()
	m.Shutdown()
	assert.EqualError(t, m.Release(), "busy")

	want := []string{"idle", "held", "turned", "lost", "shutdown", "release"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
	assert.Equal(t, []int{2}, a.held)
}

func TestNeopixelWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neo")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	ind, err := New(Config{NeopixelPipe: path})
	require.NoError(t, err)
	n := ind.(*Neopixel)

	n.Idle()
	n.Held(1)
	n.Held(2) // no change in state, nothing written
	n.Turned()
	n.Held(0)
	n.Shutdown()
	require.NoError(t, n.Release())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, neoNormalIdle+neoHeld+neoNormalIdle+neoTerminated, string(out))
}

func TestNeopixelMissingPipe(t *testing.T) {
	_, err := NewNeopixel(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
