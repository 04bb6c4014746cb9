package rhythm

import (
	"testing"
	"time"

	"github.com/robmorgan/metronome/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func beatsEqual(log *beatLog, expected ...int) func() bool {
	return func() bool {
		return assert.ObjectsAreEqual(expected, log.Beats())
	}
}

func TestDispatcherDeliversAtAudioTime(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	beats := &beatLog{}
	d := NewDispatcher(fc, fakeClockAudio{fc}, 0, beats.record)

	d.NotifyAt(2, 0.05)
	assert.Equal(t, 1, d.Pending())
	assert.True(t, fc.HasWaiters())

	fc.Step(49 * time.Millisecond)
	assert.Never(t, func() bool { return len(beats.Beats()) > 0 }, 20*time.Millisecond, time.Millisecond)

	fc.Step(time.Millisecond)
	require.Eventually(t, beatsEqual(beats, 2), time.Second, time.Millisecond)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherDeliversPastTimesImmediately(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	fc.Step(time.Second)
	beats := &beatLog{}
	d := NewDispatcher(fc, fakeClockAudio{fc}, 0, beats.record)

	d.NotifyAt(1, 0.9)
	d.NotifyAt(3, 1.0)
	require.Eventually(t, func() bool { return len(beats.Beats()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 3}, beats.Beats())
	assert.False(t, fc.HasWaiters())
}

func TestDispatcherKeepsOverdueBurstInOrder(t *testing.T) {
	t.Parallel()

	expected := []int{0, 1, 2, 3, 4, 5}
	for round := 0; round < 200; round++ {
		fc := testingclock.NewFakeClock(origin)
		fc.Step(time.Second)
		beats := &beatLog{}
		d := NewDispatcher(fc, fakeClockAudio{fc}, 0, beats.record)

		// a wake-up that ran late commits several beats that are already due
		for _, beat := range expected {
			d.NotifyAt(beat, 0.1*float64(beat))
		}

		require.Eventually(t, func() bool { return len(beats.Beats()) == len(expected) }, time.Second, time.Millisecond)
		require.Equal(t, expected, beats.Beats(), "round %d", round)
	}
}

func TestDispatcherDueBeatWaitsForEarlierOne(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	audio := &manualAudio{}
	beats := &beatLog{}
	d := NewDispatcher(fc, audio, 0, beats.record)

	d.NotifyAt(0, 0.1)
	audio.Set(0.5)
	d.NotifyAt(1, 0.2)

	assert.Never(t, func() bool { return len(beats.Beats()) > 0 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, 2, d.Pending())

	fc.Step(100 * time.Millisecond)
	require.Eventually(t, beatsEqual(beats, 0, 1), time.Second, time.Millisecond)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherHoldsBackOutputLatency(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	beats := &beatLog{}
	d := NewDispatcher(fc, fakeClockAudio{fc}, 50*time.Millisecond, beats.record)

	// rendered now, heard one output buffer later
	d.NotifyAt(4, 0)
	assert.True(t, fc.HasWaiters())

	fc.Step(49 * time.Millisecond)
	assert.Never(t, func() bool { return len(beats.Beats()) > 0 }, 20*time.Millisecond, time.Millisecond)

	fc.Step(time.Millisecond)
	require.Eventually(t, beatsEqual(beats, 4), time.Second, time.Millisecond)
}

func TestDispatcherCancelWaitsForDeliveryInProgress(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	beats := &beatLog{}
	entered := make(chan struct{})
	release := make(chan struct{})
	d := NewDispatcher(fc, fakeClockAudio{fc}, 0, func(beat int) {
		close(entered)
		<-release
		beats.record(beat)
	})

	d.NotifyAt(0, 0)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("beat was never delivered")
	}

	cancelled := make(chan int, 1)
	go func() { cancelled <- d.CancelPending() }()
	assert.Never(t, func() bool { return len(cancelled) > 0 }, 50*time.Millisecond, time.Millisecond)

	close(release)
	assert.Equal(t, 0, <-cancelled)
	assert.Equal(t, []int{0}, beats.Beats())
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	beats := &beatLog{}
	d := NewDispatcher(fc, fakeClockAudio{fc}, 0, beats.record)

	for beat := 0; beat < 4; beat++ {
		d.NotifyAt(beat, 0.1*float64(beat+1))
	}

	for beat := 0; beat < 4; beat++ {
		fc.Step(100 * time.Millisecond)
		expected := make([]int, beat+1)
		for i := range expected {
			expected[i] = i
		}
		require.Eventually(t, beatsEqual(beats, expected...), time.Second, time.Millisecond)
	}
}

func TestDispatcherCancelPending(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	beats := &beatLog{}
	d := NewDispatcher(fc, fakeClockAudio{fc}, 0, beats.record)

	d.NotifyAt(0, 0.1)
	d.NotifyAt(1, 0.2)
	assert.Equal(t, 2, d.CancelPending())
	assert.Equal(t, 0, d.Pending())

	fc.Step(time.Second)
	assert.Never(t, func() bool { return len(beats.Beats()) > 0 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, 0, d.CancelPending())
}

// startAndWaitForSecondBeat steps the fake clock a millisecond at a time until
// the second beat has been committed, leaving its notification pending.
func startAndWaitForSecondBeat(t *testing.T, m *Metronome, fc *testingclock.FakeClock) {
	t.Helper()

	m.Start()
	require.Eventually(t, func() bool {
		fc.Step(time.Millisecond)
		return m.Snapshot().BeatsScheduled >= 2
	}, 5*time.Second, time.Millisecond)
}

func TestMetronomeStopRetractsVisualBeats(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	cfg := config.NewMetronomeConfig()
	cfg.Tempo = 300
	m, err := NewMetronome(cfg, fakeClockAudio{fc}, &recordingClicker{}, WithClock(fc))
	require.NoError(t, err)

	beats := &beatLog{}
	m.SetBeatCallback(beats.record)

	startAndWaitForSecondBeat(t, m, fc)
	require.Eventually(t, beatsEqual(beats, 0), time.Second, time.Millisecond)

	m.Stop()
	fc.Step(time.Second)
	assert.Never(t, func() bool { return len(beats.Beats()) > 2 }, 50*time.Millisecond, time.Millisecond)
	assert.Equal(t, []int{0, ClearBeats}, beats.Beats())
}

func TestMetronomeStopWithoutRetractionLetsBeatsThrough(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	cfg := config.NewMetronomeConfig()
	cfg.Tempo = 300
	cfg.RetractOnStop = false
	m, err := NewMetronome(cfg, fakeClockAudio{fc}, &recordingClicker{}, WithClock(fc))
	require.NoError(t, err)

	beats := &beatLog{}
	m.SetBeatCallback(beats.record)

	startAndWaitForSecondBeat(t, m, fc)
	require.Eventually(t, beatsEqual(beats, 0), time.Second, time.Millisecond)

	m.Stop()
	fc.Step(time.Second)
	require.Eventually(t, beatsEqual(beats, 0, ClearBeats, 1), time.Second, time.Millisecond)
}

func TestMetronomeStopClearsAfterBeatInFlight(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(origin)
	m, err := NewMetronome(config.NewMetronomeConfig(), fakeClockAudio{fc}, &recordingClicker{}, WithClock(fc))
	require.NoError(t, err)

	beats := &beatLog{}
	entered := make(chan struct{})
	release := make(chan struct{})
	m.SetBeatCallback(func(beat int) {
		if beat == 0 {
			close(entered)
			<-release
		}
		beats.record(beat)
	})

	m.Start()
	fc.Step(config.NewMetronomeConfig().Latency)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first beat was never delivered")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	assert.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, time.Millisecond)

	close(release)
	<-stopped
	assert.Equal(t, []int{0, ClearBeats}, beats.Beats())
}
