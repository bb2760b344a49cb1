package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/config"
	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/logger"
	"github.com/rileyhilliard/loadgate/internal/session"
	"github.com/rileyhilliard/loadgate/internal/smooth"
	"github.com/rileyhilliard/loadgate/internal/ui"
	"github.com/rileyhilliard/loadgate/internal/watch"
)

var (
	waitProbes    ProbeFlags
	waitGate      GateFlags
	waitStrict    bool
	waitJSON      bool
	waitNoAnimate bool
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Show the loading indicator until the probes pass",
	Long: `Show the loading indicator for at least the minimum hold and until every
probe passes, or until the timeout. With no probes, wait is a plain hold.

Exit status is 0 once the gate completes, including on timeout. Use --strict
to exit with status 2 when the gate gave up waiting.

Examples:
  loadgate wait --url http://localhost:8080/healthz
  loadgate wait --tcp localhost:5432 --tcp localhost:6379 --timeout 20s
  loadgate wait --file /tmp/build.done --min-hold 1s --strict
  loadgate wait --url http://localhost:3000 --once-per-session`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		machineMode = waitJSON

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return Wait(ctx, WaitOptions{
			ConfigPath: cfgFile,
			Probes:     waitProbes,
			Gate:       waitGate,
			Strict:     waitStrict,
			JSON:       waitJSON,
			NoAnimate:  waitNoAnimate,
			Out:        cmd.OutOrStdout(),
			TTY:        isTerminal(os.Stdout),
		})
	},
}

func init() {
	AddProbeFlags(waitCmd, &waitProbes)
	AddGateFlags(waitCmd, &waitGate)
	waitCmd.Flags().BoolVar(&waitStrict, "strict", false, "exit with status 2 if the gate timed out")
	waitCmd.Flags().BoolVar(&waitJSON, "json", false, "print the result as JSON instead of drawing the indicator")
	waitCmd.Flags().BoolVar(&waitNoAnimate, "no-animate", false, "jump to each progress value instead of easing")
	rootCmd.AddCommand(waitCmd)
}

// WaitOptions holds options for the wait command.
type WaitOptions struct {
	ConfigPath string
	Probes     ProbeFlags
	Gate       GateFlags
	Strict     bool
	JSON       bool
	NoAnimate  bool
	Out        io.Writer
	TTY        bool          // draw with Bubble Tea instead of plain lines
	Logger     logger.Logger // defaults to logger.Default()
}

// WaitResult is the --json document of a wait run.
type WaitResult struct {
	Outcome   string   `json:"outcome"` // ready, timed-out, session or cancelled
	ElapsedMS int64    `json:"elapsed_ms"`
	RunID     string   `json:"run_id"`
	Probes    []string `json:"probes,omitempty"`
}

// Wait runs one gate against the requested probes and renders it.
func Wait(ctx context.Context, opts WaitOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	cfg, path, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := opts.Gate.Apply(&cfg.Gate); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if path != "" {
		log.Debug("using config %s", path)
	}

	clk := clock.Real()
	watcher, names, err := buildWatcher(opts.Probes, cfg.Probe, clk, log)
	if err != nil {
		return err
	}
	if cfg.Gate.Timeout == 0 && len(names) > 0 {
		log.Warn("no timeout set: waiting until every probe passes, however long that takes")
	}

	store := openSessionStore(cfg, log)
	if store != nil {
		defer store.Close() //nolint:errcheck // Nothing to do on close failure
	}

	r := &waitRun{
		cfg:       cfg,
		clock:     clk,
		watcher:   watcher,
		store:     store,
		log:       log,
		out:       out,
		tty:       opts.TTY && !opts.JSON,
		quiet:     opts.JSON,
		noAnimate: opts.NoAnimate || opts.JSON,
	}
	result, err := r.run(ctx)
	if err != nil {
		return err
	}
	result.Probes = names

	if opts.JSON {
		if err := WriteJSONSuccess(out, result); err != nil {
			return err
		}
	}

	switch {
	case result.Outcome == outcomeCancelled:
		return errors.NewExitError(ExitInterrupted)
	case opts.Strict && result.Outcome == gate.OutcomeTimedOut.String():
		return errors.NewExitError(ExitTimedOut)
	}
	return nil
}

const outcomeCancelled = "cancelled"

// waitRun is one gate run with its collaborators resolved.
type waitRun struct {
	cfg       *config.Config
	clock     clock.Clock
	watcher   gate.Watcher
	store     gate.SessionStore
	log       logger.Logger
	out       io.Writer
	tty       bool // Bubble Tea rendering
	quiet     bool // no rendering at all
	noAnimate bool

	programOpts []tea.ProgramOption
}

func (r *waitRun) newScalar() (gate.Scalar, func()) {
	if r.noAnimate {
		return smooth.NewInstant(), func() {}
	}
	s := smooth.NewSpring(r.clock,
		smooth.WithFPS(r.cfg.Indicator.FPS),
		smooth.WithFrequency(r.cfg.Indicator.Spring.Frequency),
		smooth.WithDamping(r.cfg.Indicator.Spring.Damping),
	)
	return s, s.Close
}

func (r *waitRun) run(ctx context.Context) (WaitResult, error) {
	scalar, closeScalar := r.newScalar()
	defer closeScalar()

	opts := []gate.Option{
		gate.WithClock(r.clock),
		gate.WithScalar(scalar),
		gate.WithLogger(r.log),
		gate.WithPollInterval(r.cfg.Gate.PollInterval),
		gate.WithSettleBudget(r.cfg.Gate.SettleBudget),
		gate.WithSettleThreshold(r.cfg.Gate.SettleThreshold),
	}
	if r.store != nil {
		opts = append(opts, gate.WithSessionStore(r.store))
	}
	g := gate.New(opts...)

	var elapsed time.Duration
	onComplete := func() { elapsed = g.Elapsed() }

	var cancelled bool
	switch {
	case r.quiet:
		sub := g.Activate(r.cfg.Gate.ToGate(), r.watcher, onComplete)
		cancelled = !r.await(ctx, g, sub)
	case r.tty:
		var err error
		cancelled, err = r.runProgram(ctx, g, scalar, onComplete)
		if err != nil {
			return WaitResult{}, err
		}
	default:
		plain := ui.NewPlainProgress(r.out, r.cfg.Indicator.Label, r.cfg.Indicator.Width/2)
		scalarSub := scalar.Subscribe(plain.Update)
		sub := g.Activate(r.cfg.Gate.ToGate(), r.watcher, onComplete)
		cancelled = !r.await(ctx, g, sub)
		scalarSub.Dispose()
		if cancelled {
			plain.Finish(gate.OutcomeNone, g.Elapsed())
		} else {
			plain.Update(1)
			plain.Finish(g.Outcome(), elapsed)
		}
	}

	result := WaitResult{RunID: g.RunID()}
	if cancelled {
		result.Outcome = outcomeCancelled
		result.ElapsedMS = g.Elapsed().Milliseconds()
		r.log.Debug("[%s] cancelled after %s", result.RunID, g.Elapsed())
		return result, nil
	}
	result.Outcome = g.Outcome().String()
	result.ElapsedMS = elapsed.Milliseconds()
	return result, nil
}

// await blocks until the gate is over or ctx ends. It reports whether the
// gate fired.
func (r *waitRun) await(ctx context.Context, g *gate.Gate, sub gate.Disposable) bool {
	select {
	case <-g.Done():
	case <-ctx.Done():
		sub.Dispose()
		if g.Fired() {
			<-g.Done()
		}
	}
	return g.Fired()
}

// runProgram drives the gate under a Bubble Tea program. It reports whether
// the user cancelled. A gate that fired before the program stopped counts as
// completed, and runProgram returns only after its session write.
func (r *waitRun) runProgram(ctx context.Context, g *gate.Gate, scalar gate.Scalar, onComplete func()) (bool, error) {
	view := ui.NewGateView(indicatorFromConfig(r.cfg.Indicator)).
		WithSource(scalar.Get, r.cfg.Indicator.FPS)
	popts := append([]tea.ProgramOption{tea.WithOutput(r.out), tea.WithContext(ctx)}, r.programOpts...)
	p := tea.NewProgram(view, popts...)

	sub := g.Activate(r.cfg.Gate.ToGate(), r.watcher, onComplete)
	go func() {
		select {
		case <-g.Done():
			if g.Fired() {
				p.Send(ui.DoneMsg{Outcome: g.Outcome(), Elapsed: g.Elapsed()})
			}
		case <-ctx.Done():
		}
	}()

	final, err := p.Run()
	if m, ok := final.(ui.GateView); ok && m.Done() {
		<-g.Done()
		return false, nil
	}

	sub.Dispose()
	if g.Fired() {
		<-g.Done()
		return false, nil
	}
	if err != nil && ctx.Err() == nil {
		return true, errors.WrapWithCode(err, errors.ErrGate,
			"Failed to draw the loading indicator",
			"Run with --json or pipe the output to skip the interactive display")
	}
	return true, nil
}

// buildWatcher turns the probe flags into one watcher that is done when all
// probes pass. With no probes the watcher is done immediately, so the gate
// only holds for the minimum hold.
func buildWatcher(flags ProbeFlags, pc config.ProbeConfig, clk clock.Clock, log logger.Logger) (gate.Watcher, []string, error) {
	if flags.Empty() {
		ready := watch.NewSignal()
		ready.Fire()
		return ready, nil, nil
	}

	probeOpts := []watch.ProbeOption{
		watch.WithProbeClock(clk),
		watch.WithProbeInterval(pc.Interval),
		watch.WithAttemptTimeout(pc.AttemptTimeout),
		watch.WithProbeLogger(log),
	}
	client := &http.Client{}

	var watchers []gate.Watcher
	var names []string
	add := func(name string, check watch.Check) {
		watchers = append(watchers, watch.NewProbe(name, check, probeOpts...))
		names = append(names, name)
	}

	for _, raw := range flags.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, nil, errors.New(errors.ErrProbe,
				fmt.Sprintf("'%s' isn't an http(s) URL", raw),
				"Use a full URL such as http://localhost:8080/healthz")
		}
		add("http "+raw, watch.HTTPCheck(client, raw, pc.HTTPStatus))
	}
	for _, addr := range flags.TCP {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, nil, errors.WrapWithCode(err, errors.ErrProbe,
				fmt.Sprintf("'%s' isn't a host:port address", addr),
				"Use something like localhost:5432")
		}
		add("tcp "+addr, watch.TCPCheck(addr))
	}
	for _, path := range flags.Files {
		add("file "+path, watch.FileCheck(config.ExpandTilde(path)))
	}

	var w gate.Watcher = watch.All(watchers...)
	if len(watchers) == 1 {
		w = watchers[0]
	}
	if pc.Quiet > 0 {
		w = watch.Quiet(w, pc.Quiet, clk)
	}
	return w, names, nil
}

// openSessionStore opens the store behind --once-per-session. Failures are
// logged and the run continues without a store.
func openSessionStore(cfg *config.Config, log logger.Logger) session.Store {
	if !cfg.Gate.OncePerSession {
		return nil
	}
	id := session.ResolveID(cfg.Session.ID)
	store, err := session.Open(cfg.Session.Backend, cfg.Session.ResolvedPath(), id)
	if err != nil {
		log.Warn("session store unavailable, probing anyway: %v", err)
		return nil
	}
	log.Debug("session %s (%s)", id, cfg.Session.Backend)
	return store
}

// indicatorFromConfig builds the indicator the config describes.
func indicatorFromConfig(ind config.IndicatorConfig) ui.Indicator {
	return ui.NewIndicator(ui.IndicatorOptions{
		Style:       ind.Style,
		Width:       ind.Width,
		Label:       ind.Label,
		Color:       ind.Color,
		TrackColor:  ind.TrackColor,
		ShowPercent: ind.ShowPercent,
	})
}
