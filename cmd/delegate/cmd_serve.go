package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/delegate/config"
	"github.com/shashiranjanraj/delegate/internal/server"
	"github.com/shashiranjanraj/delegate/pkg/async"
	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/remote"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

// delegate serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics, health and remote delegate calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store := openDeadLetter()
		w := worker.New("remote", worker.WithQueueSize(config.WorkerQueueSize()), worker.WithDeadLetter(store))
		w.Start()
		defer w.Close()

		reg, err := builtinReceivers(w)
		if err != nil {
			return err
		}

		t, err := openTransport(ctx, "")
		if err != nil {
			return err
		}
		defer t.Close()

		fmt.Printf("Serving on %s (receivers: %v). Press Ctrl+C to stop.\n", config.MetricsAddr(), reg.IDs())
		return server.New(config.MetricsAddr(), reg,
			server.WithTransport(t),
			server.WithDeadLetter(store),
			server.WithWorkers(w),
		).Run(ctx)
	},
}

// builtinReceivers registers the receivers every server exposes. Each one
// hands its call to w.
func builtinReceivers(w *worker.Thread) (*remote.Registry, error) {
	echo, err := async.New(delegate.Action(func(args json.RawMessage) {
		logger.Info("remote: echo", "args", string(args))
	}), w)
	if err != nil {
		return nil, err
	}

	square := delegate.Func(func(x int) int { return x * x })
	timeout := config.WaitTimeout()

	reg := remote.NewRegistry()
	reg.Register(remote.NewReceiver("echo", echo))
	reg.Register(remote.NewReceiver("square", delegate.Action(func(x int) {
		h := async.NewWait(square, w, timeout)
		if r := h.Invoke(x); h.IsSuccess() {
			logger.Info("remote: square", "x", x, "result", r)
		} else {
			logger.Warn("remote: square did not complete", "x", x, "timeout", timeout)
		}
	})))
	return reg, nil
}
