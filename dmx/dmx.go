// Package dmx mirrors the beat on a row of DMX lamps, one dimmer channel per
// beat of the bar, and streams the frame to OLA.
package dmx

import (
	"fmt"
	"sync"

	"github.com/robmorgan/metronome/pattern"
)

// UniverseSize is the number of channels in a DMX512 universe.
const UniverseSize = 512

// Lamp levels for each accent.
const (
	StrongLevel = 255
	MediumLevel = 170
	WeakLevel   = 85
)

// Flasher holds the frame for one universe and lights the lamp of the
// current beat.
type Flasher struct {
	universe int
	start    int

	lock    sync.Mutex
	pattern []pattern.Accent
	values  []byte
}

// NewFlasher returns a Flasher whose first lamp sits on startChannel
// (1-based).
func NewFlasher(universe, startChannel int) (*Flasher, error) {
	if startChannel < 1 || startChannel > UniverseSize {
		return nil, fmt.Errorf("dmx channel (%d) not in range", startChannel)
	}
	return &Flasher{
		universe: universe,
		start:    startChannel,
		values:   make([]byte, UniverseSize),
	}, nil
}

func (f *Flasher) Universe() int {
	return f.universe
}

// SetPattern sets the number of lamps in use and turns them all off.
func (f *Flasher) SetPattern(p []pattern.Accent) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.clear()
	f.pattern = append([]pattern.Accent(nil), p...)
}

// OnBeat lights the lamp for beat at its accent level and turns the rest
// off. A negative beat turns every lamp off.
func (f *Flasher) OnBeat(beat int) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.clear()
	if beat < 0 || beat >= len(f.pattern) {
		return
	}
	f.set(f.start+beat, Level(f.pattern[beat]))
}

// Frame returns a copy of the universe's channel values.
func (f *Flasher) Frame() []byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]byte(nil), f.values...)
}

// Level returns the lamp level for an accent.
func Level(a pattern.Accent) byte {
	switch a {
	case pattern.Strong:
		return StrongLevel
	case pattern.Medium:
		return MediumLevel
	default:
		return WeakLevel
	}
}

func (f *Flasher) clear() {
	for n := range f.pattern {
		f.set(f.start+n, 0)
	}
}

// set ignores lamps that would fall off the end of the universe.
func (f *Flasher) set(channel int, value byte) {
	if channel > UniverseSize {
		return
	}
	f.values[channel-1] = value
}
