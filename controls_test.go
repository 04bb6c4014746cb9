package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/faiface/beep"
	"github.com/robmorgan/metronome/audio"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/dmx"
	"github.com/robmorgan/metronome/gate"
	"github.com/robmorgan/metronome/indicator"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/robmorgan/metronome/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestHandleKey(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		event    keyboard.KeyEvent
		expected command
	}{
		{"space", keyboard.KeyEvent{Key: keyboard.KeySpace}, command{action: actionToggle}},
		{"slower", keyboard.KeyEvent{Rune: '['}, command{action: actionTempo, delta: -1}},
		{"faster", keyboard.KeyEvent{Rune: ']'}, command{action: actionTempo, delta: 1}},
		{"much slower", keyboard.KeyEvent{Rune: '{'}, command{action: actionTempo, delta: -10}},
		{"much faster", keyboard.KeyEvent{Rune: '}'}, command{action: actionTempo, delta: 10}},
		{"signature", keyboard.KeyEvent{Rune: 't'}, command{action: actionNextSignature}},
		{"gate", keyboard.KeyEvent{Rune: 'g'}, command{action: actionGate}},
		{"q", keyboard.KeyEvent{Rune: 'q'}, command{action: actionQuit}},
		{"escape", keyboard.KeyEvent{Key: keyboard.KeyEsc}, command{action: actionQuit}},
		{"ctrl+c", keyboard.KeyEvent{Key: keyboard.KeyCtrlC}, command{action: actionQuit}},
		{"anything else", keyboard.KeyEvent{Rune: 'x'}, command{action: actionNone}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, handleKey(tc.event))
		})
	}
}

func newTestController(t *testing.T) (*controller, *audio.Engine) {
	t.Helper()

	fc := testingclock.NewFakeClock(time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	engine := audio.NewEngine(beep.SampleRate(1000))
	m, err := rhythm.NewMetronome(config.NewMetronomeConfig(), engine, synth.New(engine), rhythm.WithClock(fc))
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	lamps, err := dmx.NewFlasher(1, 1)
	require.NoError(t, err)

	ctl := &controller{
		metronome: m,
		gate:      gate.New(engine, gate.DefaultFrequency, gate.DefaultGain),
		display:   indicator.New(&bytes.Buffer{}),
		lamps:     lamps,
		logger:    logger.ForComponent("test"),
	}
	ctl.refresh()
	return ctl, engine
}

func TestControllerToggle(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t)

	assert.False(t, ctl.apply(command{action: actionToggle}))
	assert.True(t, ctl.metronome.IsPlaying())
	assert.Contains(t, ctl.display.Render(), "playing")

	assert.False(t, ctl.apply(command{action: actionToggle}))
	assert.False(t, ctl.metronome.IsPlaying())
	assert.Contains(t, ctl.display.Render(), "stopped")
}

func TestControllerTempo(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t)

	ctl.apply(command{action: actionTempo, delta: 10})
	ctl.apply(command{action: actionTempo, delta: -1})
	assert.Equal(t, 129.0, ctl.metronome.Tempo())
	assert.Contains(t, ctl.display.Render(), "129 BPM")

	for i := 0; i < 30; i++ {
		ctl.apply(command{action: actionTempo, delta: 10})
	}
	assert.Equal(t, config.DefaultMaxTempo, ctl.metronome.Tempo())
}

func TestControllerCyclesSignatures(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t)
	table := ctl.metronome.PatternTable()

	ctl.apply(command{action: actionNextSignature})
	assert.Equal(t, table.Next("4"), ctl.metronome.TimeSignature())
	assert.Equal(t, ctl.metronome.TimeSignature(), ctl.shown)
	assert.Contains(t, ctl.display.Render(), ctl.metronome.TimeSignature())

	ctl.lamps.OnBeat(table.Len(ctl.shown) - 1)
	assert.Equal(t, byte(dmx.WeakLevel), ctl.lamps.Frame()[table.Len(ctl.shown)-1])

	for i := 0; i < len(table.IDs()); i++ {
		ctl.apply(command{action: actionNextSignature})
	}
	assert.Equal(t, table.Next("4"), ctl.metronome.TimeSignature())
}

func TestControllerGate(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t)

	// stopped, so the gate stays off
	ctl.apply(command{action: actionGate})
	assert.False(t, ctl.gate.IsActive())

	ctl.apply(command{action: actionToggle})
	ctl.apply(command{action: actionGate})
	assert.True(t, ctl.gate.IsActive())

	ctl.apply(command{action: actionGate})
	assert.False(t, ctl.gate.IsActive())
}

func TestControllerQuit(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t)
	assert.True(t, ctl.apply(command{action: actionQuit}))
	assert.False(t, ctl.apply(command{action: actionNone}))
}

func TestFanOut(t *testing.T) {
	t.Parallel()

	var first, second []int
	sink := fanOut(
		func(beat int) { first = append(first, beat) },
		func(beat int) { second = append(second, beat) },
	)
	sink(0)
	sink(rhythm.ClearBeats)

	assert.Equal(t, []int{0, rhythm.ClearBeats}, first)
	assert.Equal(t, first, second)
}
