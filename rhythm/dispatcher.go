package rhythm

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Dispatcher delivers beat notifications on the wall clock at roughly the
// moment their click is heard. Delivery is only as precise as the wall clock
// timers, which is fine for anything visual.
//
// Notifications are delivered in the order they were requested, so a burst of
// overdue beats after a late wake-up still ends on the latest one.
type Dispatcher struct {
	clock   clock.Clock
	audio   AudioClock
	latency time.Duration
	fire    BeatFunc

	// deliverMu is held while a beat is handed to fire, so CancelPending
	// returns only once no cancelled beat can still be delivered.
	deliverMu sync.Mutex

	mu    sync.Mutex
	queue []*pendingBeat
}

type pendingBeat struct {
	beat   int
	ready  bool
	cancel chan struct{}
}

// NewDispatcher creates a Dispatcher that calls fire for each delivered beat.
// latency is how far the audio clock runs ahead of what is audible, normally
// the output buffer length; notifications are held back by that much.
func NewDispatcher(c clock.Clock, audio AudioClock, latency time.Duration, fire BeatFunc) *Dispatcher {
	return &Dispatcher{
		clock:   c,
		audio:   audio,
		latency: latency,
		fire:    fire,
	}
}

// NotifyAt schedules beat to be delivered when the click at audio time at is
// heard. Times already in the past are delivered straight away. It never
// blocks on delivery.
func (d *Dispatcher) NotifyAt(beat int, at float64) {
	delay := d.delayUntil(at)
	n := &pendingBeat{beat: beat, cancel: make(chan struct{})}

	ready := delay <= 0
	n.ready = ready

	d.mu.Lock()
	d.queue = append(d.queue, n)
	d.mu.Unlock()

	if ready {
		go d.drain()
		return
	}

	timer := d.clock.NewTimer(delay)
	go d.await(n, timer)
}

func (d *Dispatcher) await(n *pendingBeat, timer clock.Timer) {
	select {
	case <-timer.C():
	case <-n.cancel:
		timer.Stop()
		return
	}

	d.mu.Lock()
	n.ready = true
	d.mu.Unlock()
	d.drain()
}

// drain delivers ready notifications from the front of the queue. A ready
// notification waits behind an earlier one that isn't due yet.
func (d *Dispatcher) drain() {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	for {
		d.mu.Lock()
		if len(d.queue) == 0 || !d.queue[0].ready {
			d.mu.Unlock()
			return
		}
		n := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.fire(n.beat)
	}
}

// CancelPending drops every notification that hasn't been delivered and
// returns how many there were. It waits for a delivery in progress to finish,
// so nothing it dropped reaches fire afterwards. It must not be called from
// fire.
func (d *Dispatcher) CancelPending() int {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	count := len(d.queue)
	for _, n := range d.queue {
		close(n.cancel)
	}
	d.queue = nil
	return count
}

// Pending returns the number of notifications waiting to be delivered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

var _ Notifier = (*Dispatcher)(nil)

// delayUntil converts an audio clock time into a wall clock delay until the
// sample is heard.
func (d *Dispatcher) delayUntil(at float64) time.Duration {
	return secondsToDuration(at-d.audio.Now()) + d.latency
}
