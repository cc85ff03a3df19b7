// Package main shows the delegate runtime in a small program: a system-mode
// publisher whose subscribers are called back on their own worker threads.
//
// To run this example:
//
//	go run ./example
package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/multicast"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

type SystemMode int

const (
	Starting SystemMode = iota
	Normal
	Service
	SysInop
)

func (m SystemMode) String() string {
	return [...]string{"STARTING", "NORMAL", "SERVICE", "SYS_INOP"}[m]
}

type ModeChange struct {
	Previous SystemMode
	Current  SystemMode
}

// ─── Publisher guarded by a lock ──────────────────────────────────────────────

// SysData publishes mode changes. Subscribers may live on any goroutine.
type SysData struct {
	ModeChanged multicast.Safe[ModeChange, delegate.Void]

	mu   sync.Mutex
	mode SystemMode
}

func (s *SysData) SetSystemMode(m SystemMode) {
	s.mu.Lock()
	change := ModeChange{Previous: s.mode, Current: m}
	s.mode = m
	s.mu.Unlock()

	s.ModeChanged.Invoke(change)
}

// ─── Publisher serialised on its own worker ───────────────────────────────────

// SysDataNoLock needs no mutex: every mutation runs on its worker.
type SysDataNoLock struct {
	ModeChanged multicast.Safe[ModeChange, delegate.Void]

	w    *worker.Thread
	mode SystemMode

	setAsync *async.Async[SystemMode, delegate.Void]
	setWait  *async.Wait[SystemMode, SystemMode]
}

func NewSysDataNoLock(w *worker.Thread) *SysDataNoLock {
	s := &SysDataNoLock{w: w}
	s.setAsync = async.MustNew(delegate.MethodAction(s, (*SysDataNoLock).set), w)
	s.setWait = async.NewWait(delegate.Method(s, (*SysDataNoLock).swap), w, time.Second)
	return s
}

// SetSystemModeAsync queues the change and returns immediately.
func (s *SysDataNoLock) SetSystemModeAsync(m SystemMode) { s.setAsync.Invoke(m) }

// SetSystemModeWait applies the change on the worker and returns the
// previous mode.
func (s *SysDataNoLock) SetSystemModeWait(m SystemMode) (SystemMode, bool) {
	prev := s.setWait.Invoke(m)
	return prev, s.setWait.IsSuccess()
}

func (s *SysDataNoLock) set(m SystemMode) { s.swap(m) }

func (s *SysDataNoLock) swap(m SystemMode) SystemMode {
	change := ModeChange{Previous: s.mode, Current: m}
	s.mode = m
	s.ModeChanged.Invoke(change)
	return change.Previous
}

// ─── Subscriber ───────────────────────────────────────────────────────────────

type client struct {
	name string
	wg   *sync.WaitGroup
}

func (c *client) OnModeChanged(ch ModeChange) {
	defer c.wg.Done()
	fmt.Printf("%s: %s -> %s\n", c.name, ch.Previous, ch.Current)
}

func main() {
	logger.Configure("text", "warn")

	clientThread := worker.New("client")
	sysThread := worker.New("sysdata")
	clientThread.Start()
	sysThread.Start()
	defer clientThread.Close()
	defer sysThread.Close()

	var wg sync.WaitGroup
	c := &client{name: "client", wg: &wg}
	onChange := async.MustNew(delegate.MethodAction(c, (*client).OnModeChanged), clientThread)

	var locked SysData
	locked.ModeChanged.Add(onChange)

	noLock := NewSysDataNoLock(sysThread)
	noLock.ModeChanged.Add(onChange)

	wg.Add(2)
	locked.SetSystemMode(Starting)
	locked.SetSystemMode(Normal)

	wg.Add(2)
	noLock.SetSystemModeAsync(Service)
	noLock.SetSystemModeAsync(SysInop)

	wg.Add(1)
	if prev, ok := noLock.SetSystemModeWait(Normal); ok {
		fmt.Printf("main: previous mode was %s\n", prev)
	}

	wg.Wait()
	locked.ModeChanged.Remove(onChange)
	noLock.ModeChanged.Clear()
}
