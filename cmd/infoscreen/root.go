package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"infoscreen/internal/app"
	"infoscreen/pkg/logx"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var globalOpts struct {
	configPath  string
	stopTimeout time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "infoscreen",
	Short: "Widget scheduler for slow-refresh displays",
	Long: `infoscreen draws a grid of widgets onto a shared canvas and pushes it to
a slow-refresh display.

Fast widgets redraw every second; regular widgets redraw on minute
boundaries. Running infoscreen without a subcommand starts the display loop.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDisplay,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display loop until signalled",
	Args:  cobra.NoArgs,
	RunE:  runDisplay,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalOpts.configPath, "config", "c", "./config.yaml",
		"path to config file (yaml or json)")
	rootCmd.PersistentFlags().DurationVar(&globalOpts.stopTimeout, "stop-timeout", 10*time.Second,
		"upper bound for a graceful shutdown")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runDisplay(cmd *cobra.Command, _ []string) error {
	a, err := app.New(globalOpts.configPath)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, app.Signals...)
	defer signal.Stop(sigs)

	if err := a.Start(cmd.Context()); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return err
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.ReasonFor(sig)
		a.Logger().Info("received signal, shutting down", logx.String("signal", sig.String()))
	case <-a.Done():
		switch {
		case a.Err() != nil:
			reason = app.StopFatalError
		case a.QuitRequested():
			reason = app.StopQuit
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), globalOpts.stopTimeout)
	defer cancel()
	stopErr := a.Stop(ctx, reason)
	if err := a.Err(); err != nil {
		return err
	}
	return stopErr
}
