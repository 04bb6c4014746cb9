package rhythm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/pattern"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

var origin = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// manualAudio is an audio clock the test moves by hand.
type manualAudio struct {
	mu  sync.Mutex
	now float64
}

func (a *manualAudio) Now() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

func (a *manualAudio) Set(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// fakeClockAudio reads audio time from a fake wall clock, as if the sound
// card and the timers never drift apart.
type fakeClockAudio struct {
	clock *testingclock.FakeClock
}

func (a fakeClockAudio) Now() float64 {
	return a.clock.Since(origin).Seconds()
}

type click struct {
	accent pattern.Accent
	at     float64
}

type recordingClicker struct {
	mu        sync.Mutex
	clicks    []click
	cancelled int
	err       error
	panicMsg  string
}

func (r *recordingClicker) EmitClick(a pattern.Accent, at float64) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err != nil {
		return nil, r.err
	}
	r.clicks = append(r.clicks, click{accent: a, at: at})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.cancelled++
	}, nil
}

func (r *recordingClicker) Clicks() []click {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]click(nil), r.clicks...)
}

func (r *recordingClicker) Cancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

type notification struct {
	beat int
	at   float64
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notification
	cancelCalls   int
}

func (r *recordingNotifier) NotifyAt(beat int, at float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{beat: beat, at: at})
}

func (r *recordingNotifier) CancelPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelCalls++
	return len(r.notifications)
}

func (r *recordingNotifier) Notifications() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.notifications...)
}

// beatLog collects every value passed to a beat callback.
type beatLog struct {
	mu    sync.Mutex
	beats []int
}

func (l *beatLog) record(beat int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beats = append(l.beats, beat)
}

func (l *beatLog) Beats() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.beats...)
}

type fixture struct {
	metronome *Metronome
	audio     *manualAudio
	clock     *testingclock.FakeClock
	clicker   *recordingClicker
	notifier  *recordingNotifier
}

// newFixture builds a metronome whose wake-up timer never fires on its own,
// so tests drive scheduling passes directly through pass.
func newFixture(t *testing.T, modify func(*config.MetronomeConfig)) *fixture {
	t.Helper()

	cfg := config.NewMetronomeConfig()
	if modify != nil {
		modify(&cfg)
	}

	f := &fixture{
		audio:    &manualAudio{},
		clock:    testingclock.NewFakeClock(origin),
		clicker:  &recordingClicker{},
		notifier: &recordingNotifier{},
	}
	m, err := NewMetronome(cfg, f.audio, f.clicker, WithClock(f.clock), WithNotifier(f.notifier))
	require.NoError(t, err)
	f.metronome = m

	t.Cleanup(m.Stop)
	return f
}

// pass runs one scheduling pass at audio time now and returns the clicks it
// committed.
func (f *fixture) pass(now float64) []click {
	before := len(f.clicker.Clicks())
	f.audio.Set(now)

	f.metronome.mu.Lock()
	f.metronome.schedule()
	f.metronome.mu.Unlock()

	return f.clicker.Clicks()[before:]
}

var errVoicesExhausted = errors.New("all voices are in use")
