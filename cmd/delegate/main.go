package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/delegate/config"
	"github.com/shashiranjanraj/delegate/pkg/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// closeMongo flushes the MongoDB log sink, if one was installed.
var closeMongo = func() {}

var rootCmd = &cobra.Command{
	Use:           "delegate",
	Short:         "Delegate runtime CLI",
	Long:          "Run asynchronous delegate demos, remote-call endpoints and dead-letter inspection.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		logger.Configure(config.LogFormat(), config.LogLevel())

		if uri := config.LogMongoURI(); uri != "" {
			closeFn, err := logger.UseMongo(uri, config.LogMongoDB())
			if err != nil {
				logger.Warn("mongo log sink disabled", "error", err)
				return nil
			}
			closeMongo = closeFn
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeMongo()
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	// Remote calls
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remoteListenCmd)
	rootCmd.AddCommand(remoteSendCmd)

	// Dead letters
	rootCmd.AddCommand(deadLetterListCmd)
}
