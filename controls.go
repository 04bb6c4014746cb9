package main

import (
	"github.com/eiannone/keyboard"
	"github.com/robmorgan/metronome/dmx"
	"github.com/robmorgan/metronome/gate"
	"github.com/robmorgan/metronome/indicator"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
)

type action int

const (
	actionNone action = iota
	actionToggle
	actionTempo
	actionNextSignature
	actionGate
	actionQuit
)

// command is what a single key press asks for. delta is only used by
// actionTempo.
type command struct {
	action action
	delta  float64
}

const helpText = "space start/stop  [ ] tempo -/+1  { } tempo -/+10  t signature  g gate  q quit"

// handleKey maps a key press onto a command.
func handleKey(ev keyboard.KeyEvent) command {
	switch ev.Key {
	case keyboard.KeySpace:
		return command{action: actionToggle}
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return command{action: actionQuit}
	}

	switch ev.Rune {
	case '[':
		return command{action: actionTempo, delta: -1}
	case ']':
		return command{action: actionTempo, delta: 1}
	case '{':
		return command{action: actionTempo, delta: -10}
	case '}':
		return command{action: actionTempo, delta: 10}
	case 't', 'T':
		return command{action: actionNextSignature}
	case 'g', 'G':
		return command{action: actionGate}
	case 'q', 'Q':
		return command{action: actionQuit}
	}
	return command{action: actionNone}
}

// controller applies commands to the metronome and keeps the visual sinks in
// step with it. display and lamps may be nil.
type controller struct {
	metronome *rhythm.Metronome
	gate      *gate.Activator
	display   *indicator.Indicator
	lamps     *dmx.Flasher
	logger    *logrus.Entry

	// signature last pushed to the sinks
	shown string
}

// apply runs cmd and reports whether the program should quit.
func (c *controller) apply(cmd command) bool {
	switch cmd.action {
	case actionToggle:
		if c.metronome.IsPlaying() {
			c.metronome.Stop()
		} else {
			c.metronome.Start()
		}
		snap := c.metronome.Snapshot()
		c.logger.WithFields(logrus.Fields{
			"playing": snap.Playing,
			"next":    snap.Marker(),
			"bar":     snap.BarInterval(),
		}).Debug("Transport toggled")
		c.refresh()
	case actionTempo:
		tempo := c.metronome.SetTempo(c.metronome.Tempo() + cmd.delta)
		c.logger.WithField("tempo", tempo).Debug("Tempo changed")
		c.refresh()
	case actionNextSignature:
		next := c.metronome.PatternTable().Next(c.metronome.TimeSignature())
		if c.metronome.SetTimeSignature(next) {
			c.logger.WithField("signature", next).Debug("Time signature changed")
		}
		c.refresh()
	case actionGate:
		if err := c.gate.Toggle(c.metronome.IsPlaying()); err != nil {
			c.logger.WithError(err).Warn("Could not toggle the noise gate")
		}
	case actionQuit:
		return true
	}
	return false
}

// refresh pushes the metronome's state to the visual sinks.
func (c *controller) refresh() {
	snap := c.metronome.Snapshot()
	p := c.metronome.Pattern()

	if c.display != nil {
		c.display.SetTempo(snap.Tempo)
		c.display.SetPlaying(snap.Playing)
	}
	if snap.Signature == c.shown {
		return
	}
	c.shown = snap.Signature
	if c.display != nil {
		c.display.SetPattern(snap.Signature, p)
	}
	if c.lamps != nil {
		c.lamps.SetPattern(p)
	}
}

// fanOut delivers every beat to each sink in order.
func fanOut(sinks ...rhythm.BeatFunc) rhythm.BeatFunc {
	return func(beat int) {
		for _, sink := range sinks {
			sink(beat)
		}
	}
}

// logBeats is the beat sink used when there is no terminal to draw on.
func logBeats(log *logrus.Entry, m *rhythm.Metronome) rhythm.BeatFunc {
	return func(beat int) {
		if beat == rhythm.ClearBeats {
			log.Info("Beats cleared")
			return
		}
		log.WithFields(logrus.Fields{"beat": beat, "signature": m.TimeSignature()}).Info("Beat")
	}
}
