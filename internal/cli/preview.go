package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/config"
	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/logger"
	"github.com/rileyhilliard/loadgate/internal/watch"
)

var previewOpts PreviewOptions

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the indicator to check how it looks",
	Long: `Render the configured indicator at a fixed progress, or play a full run
through the spring animation with --animate.

Flags override the indicator section of .loadgate.yaml for this preview only.

Examples:
  loadgate preview
  loadgate preview --style circle --progress 0.75
  loadgate preview --style text --animate --duration 3s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := previewOpts
		opts.ConfigPath = cfgFile
		opts.Out = cmd.OutOrStdout()
		opts.TTY = isTerminal(os.Stdout)
		return Preview(ctx, opts)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewOpts.Style, "style", "", "indicator style: bar, circle or text")
	previewCmd.Flags().StringVar(&previewOpts.Label, "label", "", "label next to the indicator")
	previewCmd.Flags().IntVar(&previewOpts.Width, "width", 0, "bar width in cells")
	previewCmd.Flags().Float64Var(&previewOpts.Progress, "progress", 0.6, "progress to render, 0 to 1")
	previewCmd.Flags().BoolVar(&previewOpts.Animate, "animate", false, "play a full run instead of a still frame")
	previewCmd.Flags().StringVar(&previewOpts.Duration, "duration", "2s", "hold time of the animated run")
	rootCmd.AddCommand(previewCmd)
}

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	ConfigPath string
	Style      string
	Label      string
	Width      int
	Progress   float64
	Animate    bool
	Duration   string
	Out        io.Writer
	TTY        bool
}

// Preview renders the indicator once, or animates a full gate run.
func Preview(ctx context.Context, opts PreviewOptions) error {
	cfg, _, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Style != "" {
		cfg.Indicator.Style = opts.Style
	}
	if opts.Label != "" {
		cfg.Indicator.Label = opts.Label
	}
	if opts.Width > 0 {
		cfg.Indicator.Width = opts.Width
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if !opts.Animate {
		if opts.Progress < 0 || opts.Progress > 1 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("--progress must be between 0 and 1 (got %g)", opts.Progress),
				"Try --progress 0.5")
		}
		fmt.Fprintln(out, indicatorFromConfig(cfg.Indicator).View(opts.Progress))
		return nil
	}

	hold, err := ParseDurationFlag("duration", opts.Duration)
	if err != nil {
		return err
	}
	cfg.Gate.MinHold = hold
	cfg.Gate.Timeout = 0
	cfg.Gate.OncePerSession = false

	// The readiness arm is done from the start, so progress follows the hold.
	clk := clock.Real()
	ready := watch.NewSignal()
	ready.Fire()

	r := &waitRun{
		cfg:     cfg,
		clock:   clk,
		watcher: ready,
		log:     logger.Default(),
		out:     out,
		tty:     opts.TTY,
	}
	start := time.Now()
	result, err := r.run(ctx)
	if err != nil {
		return err
	}
	if result.Outcome == outcomeCancelled {
		return errors.NewExitError(ExitInterrupted)
	}
	logger.Default().Debug("preview finished in %s", time.Since(start))
	return nil
}
