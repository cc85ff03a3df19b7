package testkit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/delegate/pkg/worker"
)

// DrainTimeout bounds Flush.
var DrainTimeout = 2 * time.Second

// StartWorker starts a worker that is closed when the test ends.
func StartWorker(t testing.TB, name string, opts ...worker.Option) *worker.Thread {
	t.Helper()
	w := worker.New(name, opts...)
	w.Start()
	t.Cleanup(w.Close)
	return w
}

// Block parks w's delivery goroutine until the returned func is called.
// Calling the func more than once is harmless; it is also called on cleanup
// so a failing test never leaves the worker stuck.
func Block(t testing.TB, w *worker.Thread) func() {
	t.Helper()
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, w.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	return unblock
}

// Flush waits until everything dispatched to w before the call has run.
func Flush(t testing.TB, w *worker.Thread) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, w.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(DrainTimeout):
		t.Fatalf("testkit: worker %q did not drain within %s", w.Name(), DrainTimeout)
	}
}
