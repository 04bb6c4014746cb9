package audio

import (
	"math"
	"sync"

	"github.com/faiface/beep"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/utils"
	"github.com/sirupsen/logrus"
)

// DefaultMaxVoices bounds how many tones the engine mixes at once.
const DefaultMaxVoices = 64

// VoiceID identifies a scheduled tone.
type VoiceID uint64

// Tone describes a single scheduled oscillator. Start and Stop are audio clock
// times in seconds; a zero Stop sustains the tone until it is cancelled.
type Tone struct {
	Frequency float64
	Shape     Shape
	Envelope  Envelope
	Start     float64
	Stop      float64
}

func (t Tone) validate() error {
	if t.Frequency <= 0 || math.IsNaN(t.Frequency) || math.IsInf(t.Frequency, 0) {
		return InvalidToneError{Reason: "frequency must be a positive number"}
	}
	if math.IsNaN(t.Start) || math.IsNaN(t.Stop) {
		return InvalidToneError{Reason: "start and stop must be numbers"}
	}
	if t.Stop != 0 && t.Stop <= t.Start {
		return InvalidToneError{Reason: "stop must come after start"}
	}
	return t.Envelope.Validate()
}

type voice struct {
	tone    Tone
	onEnded func()
}

// Engine mixes scheduled tones into a beep stream. Its clock is the number of
// samples it has rendered, so time only moves while the speaker pulls audio.
type Engine struct {
	mu        sync.Mutex
	rate      beep.SampleRate
	position  int64
	voices    map[VoiceID]*voice
	nextID    VoiceID
	maxVoices int
	logger    *logrus.Entry
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMaxVoices overrides DefaultMaxVoices.
func WithMaxVoices(n int) EngineOption {
	return func(e *Engine) {
		e.maxVoices = n
	}
}

// NewEngine creates an engine rendering at the given sample rate.
func NewEngine(rate beep.SampleRate, opts ...EngineOption) *Engine {
	e := &Engine{
		rate:      rate,
		voices:    make(map[VoiceID]*voice),
		maxVoices: DefaultMaxVoices,
		logger:    logger.ForComponent("audio"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SampleRate returns the rate the engine renders at.
func (e *Engine) SampleRate() beep.SampleRate {
	return e.rate
}

// Now returns the audio clock reading in seconds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeOf(e.position)
}

func (e *Engine) timeOf(sample int64) float64 {
	return float64(sample) / float64(e.rate)
}

// Active returns the number of voices that have not ended yet.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Schedule queues a tone. onEnded is called exactly once, after the tone stops
// or is cancelled, and may be nil. Start times at or before Now are accepted;
// such a tone is rendered from wherever its envelope is at the current time.
func (e *Engine) Schedule(t Tone, onEnded func()) (VoiceID, error) {
	if err := t.validate(); err != nil {
		return 0, err
	}
	if t.Shape == nil {
		t.Shape = Sine
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxVoices > 0 && len(e.voices) >= e.maxVoices {
		return 0, VoicesExhaustedError{Max: e.maxVoices}
	}

	e.nextID++
	id := e.nextID
	e.voices[id] = &voice{tone: t, onEnded: onEnded}

	e.logger.WithFields(logrus.Fields{
		"voice": id,
		"freq":  t.Frequency,
		"start": t.Start,
		"stop":  t.Stop,
	}).Trace("Scheduled tone")
	return id, nil
}

// Cancel ends a voice immediately. It returns false if the voice already ended.
func (e *Engine) Cancel(id VoiceID) bool {
	e.mu.Lock()
	v, ok := e.voices[id]
	if ok {
		delete(e.voices, id)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	if v.onEnded != nil {
		v.onEnded()
	}
	return true
}

// Stream renders the next block of samples. It implements beep.Streamer and
// never drains, so the speaker keeps the clock running.
func (e *Engine) Stream(samples [][2]float64) (n int, ok bool) {
	e.mu.Lock()

	start := e.position
	for i := range samples {
		now := e.timeOf(start + int64(i))
		var mix float64
		for _, v := range e.voices {
			mix += v.sample(now)
		}
		s := utils.ClampSample(mix)
		samples[i][0] = s
		samples[i][1] = s
	}
	e.position += int64(len(samples))

	// voices whose stop time falls before the first sample of the next block are done
	next := e.timeOf(e.position)
	var ended []func()
	for id, v := range e.voices {
		if v.tone.Stop != 0 && v.tone.Stop <= next {
			delete(e.voices, id)
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		}
	}
	e.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (e *Engine) Err() error {
	return nil
}

func (v *voice) sample(now float64) float64 {
	t := v.tone
	if now < t.Start || (t.Stop != 0 && now >= t.Stop) {
		return 0
	}
	elapsed := now - t.Start
	return t.Shape(phaseAt(t.Frequency, elapsed)) * t.Envelope.Gain(elapsed)
}
