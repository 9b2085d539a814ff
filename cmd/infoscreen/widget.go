package main

import (
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"infoscreen/internal/app"
)

var widgetOpts struct {
	loops    int
	interval time.Duration
	settle   time.Duration
}

var widgetCmd = &cobra.Command{
	Use:   "widget <name>",
	Short: "Draw a single widget for testing",
	Long: `Draw one widget from the config file on its own, enabled or not.

The widget is drawn once and pushed with a full refresh. Fast widgets then
redraw once per interval for a number of loops with monochrome partial
refreshes. Draw and refresh timings are printed for every step.

Examples:
  infoscreen widget Clock
  infoscreen widget weather -c /etc/infoscreen.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runWidget,
}

func init() {
	rootCmd.AddCommand(widgetCmd)

	widgetCmd.Flags().IntVar(&widgetOpts.loops, "loops", 10, "redraws for fast widgets")
	widgetCmd.Flags().DurationVar(&widgetOpts.interval, "interval", time.Second, "time between fast redraws")
	widgetCmd.Flags().DurationVar(&widgetOpts.settle, "settle", 2500*time.Millisecond,
		"pause after the first full refresh")
}

func runWidget(cmd *cobra.Command, args []string) error {
	a, err := app.New(globalOpts.configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), app.Signals...)
	defer stop()

	rep, err := a.Preview(ctx, args[0], app.PreviewOptions{
		Loops:    widgetOpts.loops,
		Interval: widgetOpts.interval,
		Settle:   widgetOpts.settle,
	})
	out := cmd.OutOrStdout()
	for i, st := range rep.Steps {
		fmt.Fprintf(out, "%2d %-16s draw %6.1f ms  refresh %6.1f ms\n",
			i, st.Mode, ms(st.Draw), ms(st.Refresh))
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
