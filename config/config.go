package config

import (
	"fmt"
	"math"
	"time"

	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/pattern"
	"github.com/sirupsen/logrus"
)

// Tempo bounds and defaults, in beats per minute.
const (
	DefaultMinTempo = 30.0
	DefaultMaxTempo = 300.0
	DefaultTempo    = 120.0
)

// MetronomeConfig represents options that configure the global behavior of the program
type MetronomeConfig struct {
	// Project logger
	Logger *logrus.Logger

	MinTempo  float64
	MaxTempo  float64
	Tempo     float64
	Signature string

	// Lookahead is how often the scheduler wakes up. ScheduleAhead is how far
	// into the audio clock's future each wake-up commits beats; it must exceed
	// Lookahead so a late wake-up still finds its beats queued.
	Lookahead     time.Duration
	ScheduleAhead time.Duration

	// StartOffset delays the first beat after Start.
	StartOffset time.Duration

	// RetractOnStop cancels clicks and beat notifications that were already
	// committed inside the look-ahead window when the metronome stops.
	RetractOnStop bool

	SampleRate int
	Latency    time.Duration
	MaxVoices  int

	GateEnabled   bool
	GateFrequency float64
	GateGain      float64

	// Patterns extends or overrides the built-in beat pattern table.
	Patterns map[string][]pattern.Accent

	// OLAAddress enables the DMX beat lamps when set.
	OLAAddress  string
	DMXUniverse int
	DMXChannel  int

	LogLevel string
}

// NewMetronomeConfig creates a new MetronomeConfig object with reasonable defaults for real usage
func NewMetronomeConfig() MetronomeConfig {
	return MetronomeConfig{
		Logger:        logger.GetProjectLogger(),
		MinTempo:      DefaultMinTempo,
		MaxTempo:      DefaultMaxTempo,
		Tempo:         DefaultTempo,
		Signature:     pattern.DefaultSignature,
		Lookahead:     25 * time.Millisecond,
		ScheduleAhead: 100 * time.Millisecond,
		RetractOnStop: true,
		SampleRate:    44100,
		Latency:       50 * time.Millisecond,
		MaxVoices:     64,
		GateFrequency: 30,
		GateGain:      0.001,
		DMXUniverse:   1,
		DMXChannel:    1,
		LogLevel:      "info",
	}
}

// InvalidConfigError is returned by Validate.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (err InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", err.Field, err.Reason)
}

// Validate checks the invariants the scheduler relies on.
func (c MetronomeConfig) Validate() error {
	switch {
	case !(c.MinTempo > 0) || math.IsInf(c.MinTempo, 0):
		return InvalidConfigError{Field: "min-tempo", Reason: "must be a positive number"}
	case !(c.MaxTempo >= c.MinTempo) || math.IsInf(c.MaxTempo, 0):
		return InvalidConfigError{Field: "max-tempo", Reason: "must be a number no lower than min-tempo"}
	case math.IsNaN(c.Tempo):
		return InvalidConfigError{Field: "tempo", Reason: "must be a number"}
	case c.Lookahead <= 0:
		return InvalidConfigError{Field: "lookahead", Reason: "must be positive"}
	case c.ScheduleAhead <= c.Lookahead:
		return InvalidConfigError{Field: "schedule-ahead", Reason: fmt.Sprintf("must exceed the lookahead of %v", c.Lookahead)}
	case c.StartOffset < 0:
		return InvalidConfigError{Field: "start-offset", Reason: "can't be negative"}
	case c.SampleRate <= 0:
		return InvalidConfigError{Field: "sample-rate", Reason: "must be positive"}
	case c.Latency <= 0:
		return InvalidConfigError{Field: "latency", Reason: "must be positive"}
	case c.GateFrequency <= 0:
		return InvalidConfigError{Field: "gate.frequency", Reason: "must be positive"}
	case !(c.GateGain > 0 && c.GateGain <= 1):
		return InvalidConfigError{Field: "gate.gain", Reason: "must be in (0,1]"}
	case c.DMXChannel < 1 || c.DMXChannel > 512:
		return InvalidConfigError{Field: "dmx.channel", Reason: "must be between 1 and 512"}
	}
	return nil
}

// PatternTable returns the built-in table extended with any configured patterns.
func (c MetronomeConfig) PatternTable() (*pattern.Table, error) {
	if len(c.Patterns) == 0 {
		return pattern.Default(), nil
	}
	return pattern.Default().Extend(c.Patterns)
}
