package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/faiface/beep"
	"github.com/mattn/go-isatty"
	"github.com/nickysemenza/gola"
	"github.com/robmorgan/metronome/audio"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/dmx"
	"github.com/robmorgan/metronome/gate"
	"github.com/robmorgan/metronome/indicator"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/robmorgan/metronome/synth"
	"k8s.io/utils/clock"
)

const olaTick = 40 * time.Millisecond

// Run plays the metronome until ctx is cancelled, the process is interrupted
// or the user quits from the keyboard.
func Run(ctx context.Context, cfg config.MetronomeConfig) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.ForComponent("main")
	wg := sync.WaitGroup{}

	log.Info("Initializing audio engine...")
	engine := audio.NewEngine(beep.SampleRate(cfg.SampleRate), audio.WithMaxVoices(cfg.MaxVoices))
	if err := audio.Open(engine, cfg.Latency); err != nil {
		return err
	}
	defer audio.Close()

	m, err := rhythm.NewMetronome(cfg, engine, synth.New(engine))
	if err != nil {
		return err
	}

	ctl := &controller{
		metronome: m,
		gate:      gate.New(engine, cfg.GateFrequency, cfg.GateGain),
		logger:    log,
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())

	var sinks []rhythm.BeatFunc
	if interactive {
		ctl.display = indicator.New(os.Stdout)
		defer ctl.display.Close()
		sinks = append(sinks, ctl.display.OnBeat)
	} else {
		sinks = append(sinks, logBeats(logger.ForComponent("beat"), m))
	}

	// configure OLA for DMX output
	if cfg.OLAAddress != "" {
		log.WithField("address", cfg.OLAAddress).Info("Connecting to OLA...")
		if lamps, err := startLamps(ctx, cfg, &wg); err != nil {
			log.WithError(err).Error("Could not connect to OLA")
		} else {
			ctl.lamps = lamps
			sinks = append(sinks, lamps.OnBeat)
		}
	}

	m.SetBeatCallback(fanOut(sinks...))

	if cfg.GateEnabled {
		if err := ctl.gate.Activate(); err != nil {
			log.WithError(err).Warn("Could not start the noise gate")
		}
	}

	var keys <-chan keyboard.KeyEvent
	if interactive {
		keys, err = keyboard.GetKeys(10)
		if err != nil {
			log.WithError(err).Warn("Keyboard controls unavailable")
		} else {
			defer keyboard.Close()
			fmt.Println(helpText)
		}
	}

	m.Start()
	ctl.refresh()

	for quit := false; !quit; {
		select {
		case <-ctx.Done():
			quit = true
		case ev := <-keys:
			if ev.Err != nil {
				log.WithError(ev.Err).Warn("Keyboard controls stopped")
				keys = nil
				continue
			}
			quit = ctl.apply(handleKey(ev))
		}
	}

	log.Info("Shutting down metronome")
	m.Stop()
	ctl.gate.Deactivate()
	cancel()
	wg.Wait()
	return nil
}

func startLamps(ctx context.Context, cfg config.MetronomeConfig, wg *sync.WaitGroup) (*dmx.Flasher, error) {
	lamps, err := dmx.NewFlasher(cfg.DMXUniverse, cfg.DMXChannel)
	if err != nil {
		return nil, err
	}

	client, err := gola.New(cfg.OLAAddress)
	if err != nil {
		return nil, err
	}

	wg.Add(1)
	go dmx.SendWorker(ctx, clock.RealClock{}, client, olaTick, lamps, wg)
	return lamps, nil
}
