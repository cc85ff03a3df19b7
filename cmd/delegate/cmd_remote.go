package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/remote"
)

var (
	remoteIDsFlag []string
	remoteIDFlag  string
	remoteURLFlag string
)

// delegate remote:listen --id alarm [--id status] [--url ws://host/remote]
var remoteListenCmd = &cobra.Command{
	Use:   "remote:listen",
	Short: "Print remote delegate calls received for the given ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(remoteIDsFlag) == 0 {
			return errors.New("at least one --id is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		t, err := openTransport(ctx, remoteURLFlag)
		if err != nil {
			return err
		}
		defer t.Close()

		reg := remote.NewRegistry()
		for _, id := range remoteIDsFlag {
			id := id
			reg.Register(remote.NewReceiver(id, delegate.Action(func(args json.RawMessage) {
				fmt.Printf("%s %s\n", id, args)
			})))
		}

		fmt.Printf("Listening for %v. Press Ctrl+C to stop.\n", reg.IDs())
		return remote.NewDispatcher(t, reg, remote.WithDeadLetter(openDeadLetter()), remote.WithSource("cli")).Run(ctx)
	},
}

// delegate remote:send --id alarm '{"code":7}'
var remoteSendCmd = &cobra.Command{
	Use:   "remote:send [json-args]",
	Short: "Send one remote delegate call",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if remoteIDFlag == "" {
			return errors.New("--id is required")
		}

		payload := json.RawMessage("null")
		if len(args) == 1 {
			if !json.Valid([]byte(args[0])) {
				return fmt.Errorf("arguments are not valid JSON: %s", args[0])
			}
			payload = json.RawMessage(args[0])
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		t, err := openTransport(ctx, remoteURLFlag)
		if err != nil {
			return err
		}
		defer t.Close()

		if err := remote.NewSender[json.RawMessage](t, remoteIDFlag).Send(ctx, payload); err != nil {
			return err
		}
		fmt.Printf("✅ Sent to %s\n", remoteIDFlag)
		return nil
	},
}

func init() {
	remoteListenCmd.Flags().StringArrayVar(&remoteIDsFlag, "id", nil, "Delegate id to listen for (repeatable)")
	remoteListenCmd.Flags().StringVar(&remoteURLFlag, "url", "", "WebSocket endpoint instead of REMOTE_TRANSPORT")

	remoteSendCmd.Flags().StringVar(&remoteIDFlag, "id", "", "Delegate id to call")
	remoteSendCmd.Flags().StringVar(&remoteURLFlag, "url", "", "WebSocket endpoint instead of REMOTE_TRANSPORT")
}
