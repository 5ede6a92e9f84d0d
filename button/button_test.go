package button

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifpanel/edge"
)

type release struct {
	name string
	held time.Duration
}

type recorder struct {
	downs    []string
	releases []release
	track    bool
}

func (r *recorder) down(name string) PressResult {
	r.downs = append(r.downs, name)
	if !r.track {
		return NoFollowUp()
	}
	return FollowUp(func(name string, held time.Duration) {
		r.releases = append(r.releases, release{name, held})
	})
}

func ev(level int, tick edge.Tick) edge.Event {
	return edge.Event{Pin: 20, Level: level, Tick: tick}
}

func TestRestLevel(t *testing.T) {
	assert.Equal(t, 1, RestLevel(true, true))
	assert.Equal(t, 0, RestLevel(true, false))
	assert.Equal(t, 0, RestLevel(false, true))
	assert.Equal(t, 1, RestLevel(false, false))
}

func TestPressResult(t *testing.T) {
	assert.False(t, NoFollowUp().Tracked())
	assert.True(t, FollowUp(func(string, time.Duration) {}).Tracked())
}

func TestDebounceSuppressesRepeatedPress(t *testing.T) {
	r := &recorder{}
	d := New("ok", r.down, 1, 150*time.Millisecond)

	d.Handle(ev(0, 1000000))
	d.Handle(ev(1, 1010000))
	d.Handle(ev(0, 1100000)) // 100ms after the last press edge
	assert.Equal(t, []string{"ok"}, r.downs)

	// The suppressed edge moved the window, so 200ms after the first press
	// is still only 100ms after the last one.
	d.Handle(ev(1, 1150000))
	d.Handle(ev(0, 1200000))
	assert.Len(t, r.downs, 1)

	d.Handle(ev(1, 1250000))
	d.Handle(ev(0, 1400000))
	assert.Len(t, r.downs, 2)
}

func TestFirstPressAlwaysAccepted(t *testing.T) {
	r := &recorder{}
	d := New("ok", r.down, 1, time.Second)
	d.Handle(ev(0, 5))
	assert.Equal(t, []string{"ok"}, r.downs)
}

func TestReleaseReported(t *testing.T) {
	r := &recorder{track: true}
	d := New("back", r.down, 1, 150*time.Millisecond)

	d.Handle(ev(0, 2000000))
	assert.True(t, d.Pressed())
	d.Handle(ev(1, 3500000))
	assert.False(t, d.Pressed())
	require.Len(t, r.releases, 1)
	assert.Equal(t, release{"back", 1500 * time.Millisecond}, r.releases[0])

	// A second rest edge has nothing pending.
	d.Handle(ev(1, 3600000))
	assert.Len(t, r.releases, 1)
}

func TestReleaseNeverDebounced(t *testing.T) {
	r := &recorder{track: true}
	d := New("fwd", r.down, 1, 150*time.Millisecond)

	d.Handle(ev(0, 1000000))
	d.Handle(ev(1, 1000010))
	require.Len(t, r.releases, 1)
	assert.Equal(t, 10*time.Microsecond, r.releases[0].held)
}

func TestNoFollowUpMeansNoRelease(t *testing.T) {
	r := &recorder{}
	d := New("pause", r.down, 1, 0)
	d.Handle(ev(0, 100))
	assert.False(t, d.Pressed())
	d.Handle(ev(1, 200))
	assert.Empty(t, r.releases)
}

func TestHeldAcrossWrap(t *testing.T) {
	r := &recorder{track: true}
	d := New("ok", r.down, 1, 150*time.Millisecond)

	d.Handle(ev(0, math.MaxUint32-9))
	d.Handle(ev(1, 5))
	require.Len(t, r.releases, 1)
	assert.Equal(t, 15*time.Microsecond, r.releases[0].held)
}

func TestDebounceAcrossWrap(t *testing.T) {
	r := &recorder{}
	d := New("ok", r.down, 1, 150*time.Millisecond)

	d.Handle(ev(0, math.MaxUint32-9))
	d.Handle(ev(1, 0))
	// 15µs later after wrapping is a bounce, not a 4295s gap.
	d.Handle(ev(0, 5))
	assert.Len(t, r.downs, 1)
}

func TestInvertedRestLevel(t *testing.T) {
	r := &recorder{track: true}
	d := New("nc", r.down, 0, 0)
	d.Handle(ev(0, 100))
	assert.Empty(t, r.downs, "rest edge is not a press")
	d.Handle(ev(1, 200))
	d.Handle(ev(0, 700))
	assert.Equal(t, []string{"nc"}, r.downs)
	require.Len(t, r.releases, 1)
	assert.Equal(t, 500*time.Microsecond, r.releases[0].held)
}

func TestNilDownHandler(t *testing.T) {
	d := New("x", nil, 1, 0)
	d.Handle(ev(0, 1))
	d.Handle(ev(1, 2))
	assert.False(t, d.Pressed())
}

func TestReconfigureDropsPress(t *testing.T) {
	r := &recorder{track: true}
	d := New("ok", r.down, 1, time.Second)
	d.Handle(ev(0, 100))
	require.True(t, d.Pressed())

	r2 := &recorder{track: true}
	d.Reconfigure("ok", r2.down, 1, time.Second)
	assert.False(t, d.Pressed())
	d.Handle(ev(1, 200))
	assert.Empty(t, r.releases)

	// The window restarts with the new configuration.
	d.Handle(ev(0, 300))
	assert.Equal(t, []string{"ok"}, r2.downs)
	assert.Equal(t, "ok", d.Name())
	assert.Equal(t, 1, d.RestLevel())
}

// blockingDown returns a DownHandler that signals entry on started and
// waits on proceed before returning a follow-up that records releases.
func blockingDown(started, proceed chan struct{}, ups chan<- release) DownHandler {
	return func(name string) PressResult {
		close(started)
		<-proceed
		return FollowUp(func(name string, held time.Duration) {
			ups <- release{name, held}
		})
	}
}

func TestBounceDuringDownKeepsFollowUp(t *testing.T) {
	started, proceed := make(chan struct{}), make(chan struct{})
	ups := make(chan release, 1)
	d := New("ok", blockingDown(started, proceed, ups), 1, 150*time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Handle(ev(0, 1000))
		close(done)
	}()
	<-started
	d.Handle(ev(0, 1100))
	close(proceed)
	<-done

	require.True(t, d.Pressed())
	d.Handle(ev(1, 500000))
	select {
	case r := <-ups:
		assert.Equal(t, release{"ok", 499 * time.Millisecond}, r)
	default:
		t.Fatal("release not reported")
	}
}

func TestReleaseDuringDownReportedOnReturn(t *testing.T) {
	started, proceed := make(chan struct{}), make(chan struct{})
	ups := make(chan release, 2)
	d := New("ok", blockingDown(started, proceed, ups), 1, 150*time.Millisecond)

	done := make(chan struct{})
	go func() {
		d.Handle(ev(0, 1000))
		close(done)
	}()
	<-started
	d.Handle(ev(1, 3000))
	close(proceed)
	<-done

	require.Len(t, ups, 1)
	assert.Equal(t, release{"ok", 2 * time.Millisecond}, <-ups)
	assert.False(t, d.Pressed())

	// A later stray release has nothing to report.
	d.Handle(ev(1, 4000))
	assert.Empty(t, ups)
}

func TestReconfigureDuringDownDropsFollowUp(t *testing.T) {
	started, proceed := make(chan struct{}), make(chan struct{})
	ups := make(chan release, 1)
	d := New("ok", blockingDown(started, proceed, ups), 1, 0)

	done := make(chan struct{})
	go func() {
		d.Handle(ev(0, 1000))
		close(done)
	}()
	<-started
	d.Reconfigure("ok", nil, 1, 0)
	close(proceed)
	<-done

	assert.False(t, d.Pressed())
	d.Handle(ev(1, 2000))
	assert.Empty(t, ups)
}
