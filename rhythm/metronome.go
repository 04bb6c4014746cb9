package rhythm

import (
	"math"
	"sync"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/pattern"
	"github.com/robmorgan/metronome/utils"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// ClearBeats is passed to the beat callback when every beat indicator should
// be switched off.
const ClearBeats = -1

// committedRetention is how long after its start time a committed click is
// still tracked for retraction.
const committedRetention = 0.5

// BeatFunc receives the 0-based index of the beat being heard, or ClearBeats.
type BeatFunc func(beat int)

// AudioClock is the monotonic time source of the audio engine, in seconds.
type AudioClock interface {
	Now() float64
}

// Clicker plays one click for a beat at an exact audio clock time. The
// returned cancel func retracts the click if it hasn't sounded yet.
type Clicker interface {
	EmitClick(accent pattern.Accent, at float64) (cancel func(), err error)
}

// Notifier arranges for a beat to be reported when its audio time arrives.
type Notifier interface {
	NotifyAt(beat int, at float64)
	CancelPending() int
}

// Option customizes a Metronome.
type Option func(*Metronome)

// WithClock sets the wall clock that drives wake-ups and beat notifications.
func WithClock(c clock.Clock) Option {
	return func(m *Metronome) {
		m.clock = c
	}
}

// WithNotifier replaces the default Dispatcher.
func WithNotifier(n Notifier) Option {
	return func(m *Metronome) {
		m.notifier = n
	}
}

// WithPatternTable replaces the table built from the config.
func WithPatternTable(t *pattern.Table) Option {
	return func(m *Metronome) {
		m.table = t
	}
}

type commitment struct {
	at     float64
	cancel func()
}

// Metronome schedules clicks ahead of time against the audio clock. A coarse
// wake-up runs every lookahead and commits each beat that starts within the
// next scheduleAhead seconds of audio time, so jitter in the wake-up never
// reaches the audible timing.
type Metronome struct {
	clock    clock.Clock
	audio    AudioClock
	clicker  Clicker
	notifier Notifier
	table    *pattern.Table
	logger   *logrus.Entry

	minTempo      float64
	maxTempo      float64
	lookahead     time.Duration
	scheduleAhead float64
	startOffset   float64
	retractOnStop bool

	mu           sync.Mutex
	tempo        float64
	signature    string
	pattern      []pattern.Accent
	playing      bool
	nextBeatTime float64
	cursor       int
	scheduled    uint64
	committed    []commitment
	stopCh       chan struct{}
	loopDone     chan struct{}

	callbackMu sync.RWMutex
	callback   BeatFunc
}

// NewMetronome creates a stopped Metronome.
func NewMetronome(cfg config.MetronomeConfig, audio AudioClock, clicker Clicker, opts ...Option) (*Metronome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithStackTrace(err)
	}

	m := &Metronome{
		audio:         audio,
		clicker:       clicker,
		logger:        componentLogger(cfg),
		minTempo:      cfg.MinTempo,
		maxTempo:      cfg.MaxTempo,
		lookahead:     cfg.Lookahead,
		scheduleAhead: cfg.ScheduleAhead.Seconds(),
		startOffset:   cfg.StartOffset.Seconds(),
		retractOnStop: cfg.RetractOnStop,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.table == nil {
		table, err := cfg.PatternTable()
		if err != nil {
			return nil, errors.WithStackTrace(err)
		}
		m.table = table
	}
	if m.notifier == nil {
		m.notifier = NewDispatcher(m.clock, audio, cfg.Latency, m.notifyBeat)
	}

	p, ok := m.table.Lookup(cfg.Signature)
	if !ok {
		return nil, errors.WithStackTrace(config.InvalidConfigError{Field: "signature", Reason: "unknown time signature " + cfg.Signature})
	}
	m.signature = cfg.Signature
	m.pattern = p
	m.tempo = utils.Clamp(cfg.Tempo, m.minTempo, m.maxTempo)

	return m, nil
}

// Start begins playback from the first beat of the measure. It does nothing
// if the metronome is already playing.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.playing {
		return
	}

	m.playing = true
	m.cursor = 0
	m.scheduled = 0
	m.nextBeatTime = m.audio.Now() + m.startOffset

	m.logger.WithFields(logrus.Fields{
		"tempo":     m.tempo,
		"signature": m.signature,
		"at":        m.nextBeatTime,
	}).Info("Metronome started")

	m.schedule()

	m.stopCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	go m.run(m.clock.NewTimer(m.lookahead), m.stopCh, m.loopDone)
}

// Stop halts playback and tells the beat callback to clear every indicator.
// Each call reports ClearBeats exactly once, even when already stopped, and
// when retracting it comes after any beat already being delivered. Stop must
// not be called from the beat callback.
func (m *Metronome) Stop() {
	m.mu.Lock()
	wasPlaying := m.playing
	m.playing = false
	stop, done := m.stopCh, m.loopDone
	m.stopCh, m.loopDone = nil, nil
	committed := m.committed
	m.committed = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	if m.retractOnStop {
		for _, c := range committed {
			c.cancel()
		}
		pending := m.notifier.CancelPending()
		if wasPlaying {
			m.logger.WithFields(logrus.Fields{"clicks": len(committed), "notifications": pending}).Debug("Retracted committed beats")
		}
	}

	if wasPlaying {
		m.logger.Info("Metronome stopped")
	}
	m.notifyBeat(ClearBeats)
}

// SetTempo clamps bpm to the configured range and returns the tempo now in
// use. The change applies from the next beat that hasn't been committed yet.
func (m *Metronome) SetTempo(bpm float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if math.IsNaN(bpm) {
		return m.tempo
	}
	m.tempo = utils.Clamp(bpm, m.minTempo, m.maxTempo)
	m.logger.WithField("tempo", m.tempo).Debug("Tempo set")
	return m.tempo
}

// SetTimeSignature switches to the pattern for id and restarts the measure.
// Unknown ids and the current id are ignored. It reports whether the
// signature changed.
func (m *Metronome) SetTimeSignature(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.signature {
		return false
	}
	p, ok := m.table.Lookup(id)
	if !ok {
		m.logger.WithField("signature", id).Debug("Ignoring unknown time signature")
		return false
	}

	m.signature = id
	m.pattern = p
	m.cursor = 0
	m.logger.WithFields(logrus.Fields{"signature": id, "beats": len(p)}).Debug("Time signature set")
	return true
}

// SetBeatCallback registers the single beat sink, replacing any previous one.
func (m *Metronome) SetBeatCallback(fn BeatFunc) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.callback = fn
}

// Tempo returns the current tempo in beats per minute.
func (m *Metronome) Tempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

// IsPlaying reports whether the metronome is running.
func (m *Metronome) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// TimeSignature returns the id of the active pattern.
func (m *Metronome) TimeSignature() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signature
}

// Pattern returns a copy of the active accent pattern.
func (m *Metronome) Pattern() []pattern.Accent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pattern.Accent, len(m.pattern))
	copy(out, m.pattern)
	return out
}

// Patterns returns a copy of every known pattern.
func (m *Metronome) Patterns() map[string][]pattern.Accent {
	return m.table.All()
}

// PatternTable returns the table the metronome picks signatures from.
func (m *Metronome) PatternTable() *pattern.Table {
	return m.table
}

// BeatInterval returns how long a beat lasts at the current tempo.
func (m *Metronome) BeatInterval() time.Duration {
	return secondsToDuration(beatsToSeconds(1, m.Tempo()))
}

// run re-arms the wake-up timer after every scheduling pass until stop closes.
func (m *Metronome) run(timer clock.Timer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C():
			m.mu.Lock()
			m.schedule()
			m.mu.Unlock()
			timer.Reset(m.lookahead)
		}
	}
}

// schedule commits every beat that starts before the end of the look-ahead
// window. A wake-up that arrives late catches up here in one pass, keeping
// each beat at its originally computed audio time. Callers hold m.mu.
func (m *Metronome) schedule() {
	if !m.playing {
		return
	}

	now := m.audio.Now()
	m.pruneCommitted(now)

	horizon := now + m.scheduleAhead
	for m.nextBeatTime < horizon {
		m.emit(m.cursor, m.nextBeatTime)
		m.advance()
	}
}

// advance moves to the next beat using the tempo in effect right now.
func (m *Metronome) advance() {
	m.nextBeatTime += beatsToSeconds(1, m.tempo)
	m.cursor = (m.cursor + 1) % len(m.pattern)
	m.scheduled++
}

func (m *Metronome) emit(beat int, at float64) {
	accent := m.pattern[beat]
	defer errors.Recover(func(cause error) {
		m.logger.WithError(cause).WithFields(logrus.Fields{"beat": beat, "at": at}).Error("Recovered while scheduling beat")
	})

	cancel, err := m.clicker.EmitClick(accent, at)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{"beat": beat, "accent": accent, "at": at}).Warn("Could not schedule click")
	} else if cancel != nil {
		m.committed = append(m.committed, commitment{at: at, cancel: cancel})
	}

	m.notifier.NotifyAt(beat, at)
}

func (m *Metronome) pruneCommitted(now float64) {
	kept := m.committed[:0]
	for _, c := range m.committed {
		if c.at+committedRetention >= now {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(m.committed); i++ {
		m.committed[i] = commitment{}
	}
	m.committed = kept
}

func (m *Metronome) notifyBeat(beat int) {
	m.callbackMu.RLock()
	fn := m.callback
	m.callbackMu.RUnlock()

	if fn == nil {
		return
	}

	defer errors.Recover(func(cause error) {
		m.logger.WithError(cause).WithField("beat", beat).Error("Recovered from beat callback")
	})
	fn(beat)
}

// componentLogger prefers the logger carried by the config over the project
// logger.
func componentLogger(cfg config.MetronomeConfig) *logrus.Entry {
	if cfg.Logger == nil {
		return logger.ForComponent("scheduler")
	}
	return cfg.Logger.WithField("component", "scheduler")
}

// beatsToSeconds calculates seconds for given beats and tempo
func beatsToSeconds(beats int, tempo float64) float64 {
	return (60.0 / tempo) * float64(beats)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
