package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/config"
	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/ui"
)

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update .loadgate.yaml",
	Long: `Write a .loadgate.yaml in the current directory.

On a terminal a short form asks how the indicator should look and how long the
gate should hold. If the file already exists only the answers that changed are
written back, and the rest of the file (comments included) is left alone. Use
--force to replace it with a fresh file instead.

Examples:
  loadgate init
  loadgate init --style circle --label "Starting api" --non-interactive
  loadgate init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOpts
		opts.Out = cmd.OutOrStdout()
		if !isTerminal(os.Stdin) {
			opts.NonInteractive = true
		}
		return Init(opts)
	},
}

func init() {
	initCmd.Flags().StringVar(&initOpts.Style, "style", "", "indicator style: bar, circle or text")
	initCmd.Flags().StringVar(&initOpts.Label, "label", "", "label next to the indicator")
	initCmd.Flags().StringVar(&initOpts.Color, "color", "", "indicator color, hex (#7D56F4) or ANSI (212)")
	initCmd.Flags().StringVar(&initOpts.MinHold, "min-hold", "", "minimum hold (e.g., 500ms)")
	initCmd.Flags().StringVar(&initOpts.Timeout, "timeout", "", "readiness timeout (e.g., 30s, 0 for none)")
	initCmd.Flags().BoolVarP(&initOpts.Force, "force", "f", false, "replace an existing config")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "skip prompts and use flags and defaults")
	rootCmd.AddCommand(initCmd)
}

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // defaults to ./.loadgate.yaml
	Style          string
	Label          string
	Color          string
	MinHold        string
	Timeout        string
	Force          bool
	NonInteractive bool
	Out            io.Writer
}

// initDefaults holds values sourced from environment variables.
type initDefaults struct {
	NonInteractive bool
}

// getInitDefaults reads init defaults from the environment.
// LOADGATE_NON_INTERACTIVE or CI skip the prompts.
func getInitDefaults() initDefaults {
	nonInteractive, _ := strconv.ParseBool(os.Getenv("LOADGATE_NON_INTERACTIVE"))
	if os.Getenv("CI") != "" {
		nonInteractive = true
	}
	return initDefaults{NonInteractive: nonInteractive}
}

// mergeInitOptions applies environment defaults to opts.
func mergeInitOptions(opts InitOptions) InitOptions {
	if getInitDefaults().NonInteractive {
		opts.NonInteractive = true
	}
	if opts.Path == "" {
		opts.Path = filepath.Join(".", config.ConfigFileName)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return opts
}

// initAnswers are the settings init asks about, in their file form.
type initAnswers struct {
	Style       string
	Label       string
	Color       string
	ShowPercent bool
	MinHold     string
	Timeout     string
}

func answersFrom(cfg *config.Config) initAnswers {
	return initAnswers{
		Style:       cfg.Indicator.Style,
		Label:       cfg.Indicator.Label,
		Color:       cfg.Indicator.Color,
		ShowPercent: cfg.Indicator.ShowPercent,
		MinHold:     cfg.Gate.MinHold.String(),
		Timeout:     cfg.Gate.Timeout.String(),
	}
}

// overlay replaces answers with the flags that were given.
func (a initAnswers) overlay(opts InitOptions) initAnswers {
	if opts.Style != "" {
		a.Style = opts.Style
	}
	if opts.Label != "" {
		a.Label = opts.Label
	}
	if opts.Color != "" {
		a.Color = opts.Color
	}
	if opts.MinHold != "" {
		a.MinHold = opts.MinHold
	}
	if opts.Timeout != "" {
		a.Timeout = opts.Timeout
	}
	return a
}

// apply writes the answers onto cfg and validates the result.
func (a initAnswers) apply(cfg *config.Config) error {
	minHold, err := ParseDurationFlag("min-hold", a.MinHold)
	if err != nil {
		return err
	}
	timeout, err := ParseDurationFlag("timeout", a.Timeout)
	if err != nil {
		return err
	}
	cfg.Indicator.Style = a.Style
	cfg.Indicator.Label = a.Label
	cfg.Indicator.Color = a.Color
	cfg.Indicator.ShowPercent = a.ShowPercent
	cfg.Gate.MinHold = minHold
	cfg.Gate.Timeout = timeout
	return config.Validate(cfg)
}

// changes lists the dotted keys whose values differ between before and after.
func changes(before, after *config.Config) map[string]string {
	fields := []struct {
		key      string
		from, to string
	}{
		{"indicator.style", before.Indicator.Style, after.Indicator.Style},
		{"indicator.label", before.Indicator.Label, after.Indicator.Label},
		{"indicator.color", before.Indicator.Color, after.Indicator.Color},
		{"indicator.show_percent", strconv.FormatBool(before.Indicator.ShowPercent), strconv.FormatBool(after.Indicator.ShowPercent)},
		{"gate.min_hold", before.Gate.MinHold.String(), after.Gate.MinHold.String()},
		{"gate.timeout", before.Gate.Timeout.String(), after.Gate.Timeout.String()},
	}
	out := make(map[string]string)
	for _, f := range fields {
		if f.from != f.to {
			out[f.key] = f.to
		}
	}
	return out
}

// Init creates or updates the config file.
func Init(opts InitOptions) error {
	opts = mergeInitOptions(opts)

	_, statErr := os.Stat(opts.Path)
	exists := statErr == nil
	update := exists && !opts.Force

	base := config.DefaultConfig()
	if update {
		existing, err := config.Load(opts.Path)
		if err != nil {
			return err
		}
		base = existing
	}

	answers := answersFrom(base).overlay(opts)
	if !opts.NonInteractive {
		if err := runInitForm(&answers); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Check terminal compatibility or use --non-interactive flag")
		}
	}

	cfg := *base
	if err := answers.apply(&cfg); err != nil {
		return err
	}

	if !update {
		if err := config.Save(&cfg, opts.Path); err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "%s Created %s\n\n", ui.SymbolSuccess, opts.Path)
		printInitNextSteps(opts.Out)
		return nil
	}

	values := changes(base, &cfg)
	if len(values) == 0 {
		fmt.Fprintf(opts.Out, "%s %s is already up to date\n", ui.SymbolSuccess, opts.Path)
		return nil
	}
	if err := config.SetValues(opts.Path, values); err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "%s Updated %d setting(s) in %s\n", ui.SymbolSuccess, len(values), opts.Path)
	return nil
}

func printInitNextSteps(w io.Writer) {
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  loadgate preview --animate          - See the indicator")
	fmt.Fprintln(w, "  loadgate wait --url <health-url>    - Hold until a service is up")
}

// runInitForm asks for the answers on the terminal.
func runInitForm(a *initAnswers) error {
	validDuration := func(flag string) func(string) error {
		return func(s string) error {
			_, err := ParseDurationFlag(flag, strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("use a duration like 500ms or 2s")
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Indicator style").
				Options(
					huh.NewOption("Bar", config.StyleBar),
					huh.NewOption("Circle", config.StyleCircle),
					huh.NewOption("Text", config.StyleText),
				).
				Value(&a.Style),
			huh.NewInput().
				Title("Label").
				Description("Shown next to the indicator (supports ${PROJECT}, ${USER})").
				Placeholder("Loading").
				Value(&a.Label),
			huh.NewInput().
				Title("Color").
				Description("Hex like #7D56F4 or an ANSI number like 212").
				Value(&a.Color).
				Validate(func(s string) error {
					probe := config.DefaultConfig()
					probe.Indicator.Color = strings.TrimSpace(s)
					if err := config.Validate(probe); err != nil {
						return fmt.Errorf("not a color loadgate understands")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Show percentage?").
				Value(&a.ShowPercent),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum hold").
				Description("The indicator stays up at least this long").
				Value(&a.MinHold).
				Validate(validDuration("min-hold")),
			huh.NewInput().
				Title("Timeout").
				Description("Stop waiting for readiness after this long (0 waits forever)").
				Value(&a.Timeout).
				Validate(validDuration("timeout")),
		),
	)
	return form.Run()
}
