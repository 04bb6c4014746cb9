package dmx

import (
	"context"
	"sync"
	"time"

	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// OLAClient is the interface for communicating with OLA
type OLAClient interface {
	SendDmx(universe int, values []byte) (status bool, err error)
	Close()
}

// SendWorker sends OLA the flasher's frame every tick until ctx is done. It
// closes the client on the way out.
func SendWorker(ctx context.Context, clk clock.Clock, client OLAClient, tick time.Duration, flasher *Flasher, wg *sync.WaitGroup) error {
	defer wg.Done()
	defer client.Close()

	log := logger.ForComponent("dmx").WithField("universe", flasher.Universe())

	t := clk.NewTimer(tick)
	defer t.Stop()
	log.WithField("tick", tick).Debug("DMX worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("DMX worker shutdown")
			return ctx.Err()
		case <-t.C():
			if ok, err := client.SendDmx(flasher.Universe(), flasher.Frame()); err != nil || !ok {
				log.WithFields(logrus.Fields{"status": ok}).WithError(err).Warn("Could not send DMX frame")
			}
			t.Reset(tick)
		}
	}
}
