package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "greetd-stub",
	Short: "greetd-stub is a fake greetd daemon for testing greeters",
	Long: `A stand-in for the greetd login daemon. It speaks the greetd IPC protocol
on a unix socket and accepts a single configured username and password,
optionally followed by a second factor and a fingerprint step.

Running the root command is the same as running "greetd-stub serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	addServeFlags(rootCmd)
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
