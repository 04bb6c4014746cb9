package synth

import (
	"sync"

	"github.com/fogleman/ease"
	"github.com/robmorgan/metronome/audio"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/pattern"
	"github.com/sirupsen/logrus"
)

// Pitches of the click for each accent level, in Hz.
const (
	StrongPitch = 880.0 // A5
	MediumPitch = 660.0 // E5
	WeakPitch   = 440.0 // A4
)

// Click envelope timings, in seconds from the start of the click.
const (
	ClickAttack   = 0.001
	ClickDecay    = 0.02
	ClickDuration = 0.03
	ClickPeak     = 1.0
	ClickFloor    = 0.001
)

// Device is the part of the audio engine the synthesizer needs. onEnded must
// not be called before Schedule returns.
type Device interface {
	Schedule(t audio.Tone, onEnded func()) (audio.VoiceID, error)
	Cancel(id audio.VoiceID) bool
}

// Synth turns beats into short enveloped tones on a Device.
type Synth struct {
	device Device
	logger *logrus.Entry

	mu   sync.Mutex
	live map[audio.VoiceID]pattern.Accent
}

// New returns a Synth that schedules clicks on device.
func New(device Device) *Synth {
	return &Synth{
		device: device,
		logger: logger.ForComponent("synth"),
		live:   make(map[audio.VoiceID]pattern.Accent),
	}
}

// Pitch returns the click frequency for an accent. Anything that isn't
// strong or medium clicks at the weak pitch.
func Pitch(a pattern.Accent) float64 {
	switch a {
	case pattern.Strong:
		return StrongPitch
	case pattern.Medium:
		return MediumPitch
	default:
		return WeakPitch
	}
}

// ClickTone describes the tone played for one click starting at the given
// audio clock time.
func ClickTone(a pattern.Accent, at float64) audio.Tone {
	return audio.Tone{
		Frequency: Pitch(a),
		Shape:     audio.Sine,
		Envelope: audio.Envelope{
			Peak:        ClickPeak,
			Attack:      ClickAttack,
			AttackCurve: ease.OutQuad,
			Floor:       ClickFloor,
			Decay:       ClickDecay,
		},
		Start: at,
		Stop:  at + ClickDuration,
	}
}

// EmitClick schedules one click at the audio clock time at and returns
// immediately. The returned cancel func retracts the click if it hasn't
// finished yet; it is safe to call more than once.
func (s *Synth) EmitClick(a pattern.Accent, at float64) (func(), error) {
	// hold the lock until the id is recorded so a voice ending on the audio
	// thread can't be released before it is registered
	s.mu.Lock()
	var id audio.VoiceID
	id, err := s.device.Schedule(ClickTone(a, at), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.live, id)
	})
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.live[id] = a
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"voice": id, "accent": a, "at": at}).Debug("Click scheduled")

	return func() {
		s.device.Cancel(id)
	}, nil
}

// Live returns the number of clicks whose resources haven't been released.
func (s *Synth) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
