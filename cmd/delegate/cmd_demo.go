package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/delegate/config"
	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/multicast"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

// demoCmd runs the end-to-end scenarios on a real worker.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the async delegate scenarios and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := worker.New("demo", worker.WithQueueSize(config.WorkerQueueSize()))
		w.Start()
		defer w.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tRESULT\tDETAIL")
		fmt.Fprintln(tw, "--------\t------\t------")

		failed := 0
		for _, s := range scenarios {
			ok, detail := s.run(w)
			result := "ok"
			if !ok {
				result = "FAIL"
				failed++
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.name, result, detail)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d scenario(s) failed", failed)
		}
		return nil
	},
}

type scenario struct {
	name string
	run  func(w *worker.Thread) (bool, string)
}

var scenarios = []scenario{
	{"fire-and-forget", demoFireAndForget},
	{"blocking wait", demoWait},
	{"wait timeout", demoWaitTimeout},
	{"broadcast", demoBroadcast},
	{"self-removal", demoSelfRemoval},
	{"argument lifetime", demoArgumentLifetime},
}

type counter struct{ n atomic.Int64 }

func (c *counter) Inc(by int) { c.n.Add(int64(by)) }

// flush blocks until everything queued on w before the call has run.
func flush(w *worker.Thread) {
	done := make(chan struct{})
	if err := w.Submit(func() { close(done) }); err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func demoFireAndForget(w *worker.Thread) (bool, string) {
	c := &counter{}
	h, err := async.New(delegate.MethodAction(c, (*counter).Inc), w)
	if err != nil {
		return false, err.Error()
	}
	h.Invoke(42)
	flush(w)
	return c.n.Load() == 42, fmt.Sprintf("counter=%d", c.n.Load())
}

func demoWait(w *worker.Thread) (bool, string) {
	h := async.NewWait(delegate.Func(func(x int) int { return x * x }), w, time.Second)
	r := h.Invoke(7)
	return r == 49 && h.IsSuccess(), fmt.Sprintf("square(7)=%d success=%t", r, h.IsSuccess())
}

func demoWaitTimeout(w *worker.Thread) (bool, string) {
	release := make(chan struct{})
	started := make(chan struct{})
	if err := w.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		return false, err.Error()
	}
	<-started
	defer close(release)

	h := async.NewWait(delegate.Func(func(x int) int { return x * x }), w, 50*time.Millisecond)
	start := time.Now()
	r := h.Invoke(7)
	elapsed := time.Since(start).Round(time.Millisecond)
	return r == 0 && !h.IsSuccess(), fmt.Sprintf("ret=%d success=%t after %s", r, h.IsSuccess(), elapsed)
}

type named struct {
	name  string
	mu    *sync.Mutex
	calls *[]string
}

func (n *named) On(v int) {
	n.mu.Lock()
	*n.calls = append(*n.calls, fmt.Sprintf("%s(%d)", n.name, v))
	n.mu.Unlock()
}

func demoBroadcast(*worker.Thread) (bool, string) {
	var mu sync.Mutex
	var calls []string
	var m multicast.Safe[int, delegate.Void]
	for _, name := range []string{"A", "B", "C"} {
		m.Add(delegate.MethodAction(&named{name: name, mu: &mu, calls: &calls}, (*named).On))
	}
	m.Invoke(9)
	got := fmt.Sprint(calls)
	return got == "[A(9) B(9) C(9)]", got
}

func demoSelfRemoval(*worker.Thread) (bool, string) {
	var mu sync.Mutex
	var calls []string
	var m multicast.Safe[int, delegate.Void]

	a := &named{name: "A", mu: &mu, calls: &calls}
	c := &named{name: "C", mu: &mu, calls: &calls}
	b := &named{name: "B", mu: &mu, calls: &calls}
	var bHandle *delegate.Handle[int, delegate.Void]
	bHandle = delegate.MethodAction(b, func(b *named, v int) {
		b.On(v)
		m.Remove(bHandle)
	})

	m.Add(delegate.MethodAction(a, (*named).On))
	m.Add(bHandle)
	m.Add(delegate.MethodAction(c, (*named).On))

	m.Invoke(1)
	m.Invoke(2)
	got := fmt.Sprint(calls)
	return got == "[A(1) B(1) C(1) A(2) C(2)]", got
}

func demoArgumentLifetime(w *worker.Thread) (bool, string) {
	got := make(chan string, 1)
	h, err := async.New(delegate.Action(func(b []byte) { got <- string(b) }), w)
	if err != nil {
		return false, err.Error()
	}

	buf := []byte("original payload")
	h.Invoke(buf)
	for i := range buf {
		buf[i] = 0
	}

	select {
	case s := <-got:
		return s == "original payload", fmt.Sprintf("received %q", s)
	case <-time.After(2 * time.Second):
		return false, "not delivered"
	}
}
