package audio

import (
	"time"

	"github.com/faiface/beep/speaker"
	"github.com/gruntwork-io/go-commons/errors"
)

// Open starts the system speaker and plays the engine on it. latency is the
// size of the speaker buffer; the audio clock runs ahead of what is audible by
// at most that much.
func Open(e *Engine, latency time.Duration) error {
	if err := speaker.Init(e.SampleRate(), e.SampleRate().N(latency)); err != nil {
		return errors.WithStackTrace(err)
	}
	speaker.Play(e)
	return nil
}

// Close stops the speaker.
func Close() {
	speaker.Clear()
	speaker.Close()
}
