package testkit_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/testkit"
)

func TestBlockAndFlush(t *testing.T) {
	w := testkit.StartWorker(t, "kit")
	release := testkit.Block(t, w)

	var ran atomic.Bool
	assert.NoError(t, w.Submit(func() { ran.Store(true) }))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())

	release()
	release()
	testkit.Flush(t, w)
	assert.True(t, ran.Load())
}

func TestMockTarget_ExpectationsThroughWait(t *testing.T) {
	w := testkit.StartWorker(t, "mock")
	target := testkit.NewMockTarget[int, int]()
	target.On(3).Return(9).Once()

	h := async.NewWait[int, int](target, w, time.Second)
	assert.Equal(t, 9, h.Invoke(3))
	assert.True(t, h.IsSuccess())

	// No expectation for 4: zero value, still recorded.
	assert.Equal(t, 0, h.Invoke(4))
	assert.Equal(t, 2, target.WasCalled())
	assert.Equal(t, 3, <-target.Seen())
	assert.Equal(t, 4, <-target.Seen())
	target.AssertExpectations(t)
}

func TestMockTarget_ExpectWhileInvoked(t *testing.T) {
	target := testkit.NewMockTarget[int, int]()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				target.Invoke(1)
			}
		}
	}()

	target.Expect(5, 25)
	target.Expect(6, 36)
	close(stop)
	<-done

	assert.Equal(t, 25, target.Invoke(5))
	assert.Equal(t, 36, target.Invoke(6))
	assert.Equal(t, 0, target.Invoke(1))
	target.AssertExpectations(t)
}

func TestMockTarget_CloneEquality(t *testing.T) {
	a := testkit.NewMockTarget[string, struct{}]()
	b := testkit.NewMockTarget[string, struct{}]()

	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(b))

	a.Clone().Invoke("x")
	assert.Equal(t, 1, a.WasCalled())
}

func TestAssertJSON(t *testing.T) {
	assert.True(t, testkit.AssertJSON(t, `{"a":1,"b":[1,2]}`, `{ "b":[1,2], "a":1 }`))

	diffs := testkit.DiffJSON("", map[string]interface{}{"a": 1.0}, map[string]interface{}{"a": 2.0, "c": true})
	assert.Len(t, diffs, 2)
}
