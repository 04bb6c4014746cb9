// Package gate keeps an output device awake with a sustained, inaudible tone.
//
// Some interfaces mute themselves after a moment of digital silence, which
// swallows the first click after a pause. Holding a very quiet low tone on the
// same device keeps the path open.
package gate

import (
	"sync"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/audio"
	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFrequency = 30.0
	DefaultGain      = 0.001
)

// Device is the part of the audio engine the gate needs.
type Device interface {
	Now() float64
	Schedule(t audio.Tone, onEnded func()) (audio.VoiceID, error)
	Cancel(id audio.VoiceID) bool
}

// Activator owns at most one sustained tone.
type Activator struct {
	device    Device
	frequency float64
	gain      float64
	logger    *logrus.Entry

	mu     sync.Mutex
	active bool
	voice  audio.VoiceID
}

// New returns an inactive Activator. The tone parameters are checked on the
// first Activate.
func New(device Device, frequency, gain float64) *Activator {
	return &Activator{
		device:    device,
		frequency: frequency,
		gain:      gain,
		logger:    logger.ForComponent("gate"),
	}
}

// Activate starts the sustained tone. It is a no-op when already active.
func (a *Activator) Activate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activate()
}

// Deactivate stops the sustained tone. It is a no-op when inactive.
func (a *Activator) Deactivate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deactivate()
}

// Toggle turns the gate off when the metronome isn't playing or the gate is
// already on, and on otherwise.
func (a *Activator) Toggle(isPlaying bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !isPlaying || a.active {
		a.deactivate()
		return nil
	}
	return a.activate()
}

func (a *Activator) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// activate and deactivate expect a.mu to be held.
func (a *Activator) activate() error {
	if a.active {
		return nil
	}

	tone := audio.Tone{
		Frequency: a.frequency,
		Shape:     audio.Sine,
		Envelope:  audio.Hold(a.gain),
		Start:     a.device.Now(),
	}
	id, err := a.device.Schedule(tone, nil)
	if err != nil {
		return errors.WithStackTrace(err)
	}

	a.active = true
	a.voice = id
	a.logger.WithFields(logrus.Fields{"frequency": a.frequency, "gain": a.gain}).Debug("Gate on")
	return nil
}

func (a *Activator) deactivate() {
	if !a.active {
		return
	}
	a.device.Cancel(a.voice)
	a.active = false
	a.logger.Debug("Gate off")
}
