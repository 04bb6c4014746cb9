package rhythm

import (
	"fmt"
	"time"
)

// Snapshot captures the playback state of a metronome at one instant.
type Snapshot struct {
	// Playing reports whether the scheduler was running.
	Playing bool

	// Tempo is the tempo in beats per minute.
	Tempo float64

	// Signature is the id of the active beat pattern.
	Signature string

	// BeatsPerBar is the length of the active pattern.
	BeatsPerBar int

	// Cursor is the index of the next beat to be scheduled.
	Cursor int

	// NextBeatTime is the audio clock time of the next beat to be scheduled.
	NextBeatTime float64

	// BeatsScheduled counts the beats committed since the last start.
	BeatsScheduled uint64
}

// Snapshot returns the current playback state.
func (m *Metronome) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Playing:        m.playing,
		Tempo:          m.tempo,
		Signature:      m.signature,
		BeatsPerBar:    len(m.pattern),
		Cursor:         m.cursor,
		NextBeatTime:   m.nextBeatTime,
		BeatsScheduled: m.scheduled,
	}
}

// BeatInterval gets the beat length in time.
func (s Snapshot) BeatInterval() time.Duration {
	return secondsToDuration(beatsToSeconds(1, s.Tempo))
}

// BarInterval gets the bar length in time.
func (s Snapshot) BarInterval() time.Duration {
	return secondsToDuration(beatsToSeconds(s.BeatsPerBar, s.Tempo))
}

// IsDownBeat checks whether the next beat to be scheduled starts a bar.
func (s Snapshot) IsDownBeat() bool {
	return s.Cursor == 0
}

// Marker returns the next beat as "signature beat/beats", e.g. "7S 3/7".
func (s Snapshot) Marker() string {
	return fmt.Sprintf("%s %d/%d", s.Signature, s.Cursor+1, s.BeatsPerBar)
}
