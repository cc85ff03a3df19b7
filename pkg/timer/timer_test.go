package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/testkit"
	"github.com/shashiranjanraj/delegate/pkg/timer"
)

func TestTimer_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int64
	tm := timer.New("ticks")
	tm.Expired.Set(delegate.Action0(func() { ticks.Add(1) }))

	tm.Start(10 * time.Millisecond)
	assert.True(t, tm.Running())
	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	tm.Stop()
	assert.False(t, tm.Running())
	// A tick already running when Stop was called may still finish.
	time.Sleep(20 * time.Millisecond)
	stopped := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no ticks start after Stop")
}

func TestTimer_RestartChangesInterval(t *testing.T) {
	tm := timer.New("restart")
	tm.Start(time.Hour)
	tm.Start(5 * time.Millisecond)
	defer tm.Stop()

	assert.Equal(t, 5*time.Millisecond, tm.Interval())

	var ticks atomic.Int64
	tm.Expired.Set(delegate.Action0(func() { ticks.Add(1) }))
	assert.Eventually(t, func() bool { return ticks.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	tm := timer.New("idle")
	tm.Stop()
	tm.Start(0)
	assert.False(t, tm.Running())
	tm.Stop()
}

func TestTimer_StopFromExpired(t *testing.T) {
	var ticks atomic.Int64
	stopped := make(chan struct{})
	tm := timer.New("self-stop")
	tm.Expired.Set(delegate.Action0(func() {
		if ticks.Add(1) == 1 {
			tm.Stop()
			close(stopped)
		}
	}))

	tm.Start(10 * time.Millisecond)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop called from Expired did not return")
	}
	assert.False(t, tm.Running())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load())
}

func TestTimer_RestartFromExpired(t *testing.T) {
	var ticks atomic.Int64
	tm := timer.New("self-restart")
	tm.Expired.Set(delegate.Action0(func() {
		if ticks.Add(1) == 1 {
			tm.Start(5 * time.Millisecond)
		}
	}))

	tm.Start(10 * time.Millisecond)
	defer tm.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, tm.Interval())
}

func TestTimer_PanickingCallbackKeepsTicking(t *testing.T) {
	var ticks atomic.Int64
	tm := timer.New("panics")
	tm.Expired.Set(delegate.Action0(func() {
		ticks.Add(1)
		panic("boom")
	}))

	tm.Start(5 * time.Millisecond)
	defer tm.Stop()
	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestTimer_ExpiryOnWorker(t *testing.T) {
	w := testkit.StartWorker(t, "timer-target")

	fired := make(chan struct{}, 16)
	tm := timer.New("async")
	tm.Expired.Set(async.MustNew(delegate.Action0(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}), w))

	tm.Start(5 * time.Millisecond)
	defer tm.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry never reached the worker")
	}
	assert.Positive(t, w.Stats().Dispatched)
}
