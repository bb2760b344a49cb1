package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/logger"
	"github.com/rileyhilliard/loadgate/internal/ui"
)

// Global flags
var (
	cfgFile string
	noColor bool
	verbose bool
)

// Exit codes beyond the generic failure.
const (
	ExitTimedOut    = 2   // --strict and the gate timed out
	ExitInterrupted = 130 // user quit before the gate fired
)

var rootCmd = &cobra.Command{
	Use:   "loadgate",
	Short: "Hold a loading indicator until something is ready",
	Long: `loadgate shows a loading indicator for at least a minimum time and until
a readiness probe passes, then gets out of the way.

Readiness can be an HTTP endpoint, a TCP port or a file. A timeout caps the
wait, and a session flag lets repeat runs skip the probes.

Examples:
  loadgate wait --url http://localhost:8080/healthz
  loadgate wait --tcp localhost:5432 --timeout 10s && psql
  loadgate preview --style circle --animate`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupOutput(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search for .loadgate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")
}

// setupOutput applies the global output flags.
func setupOutput(noColor, verbose bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		ui.DisableColors()
	}
	if verbose {
		logger.SetDefault(logger.NewVerboseLogger("[loadgate]"))
	} else {
		logger.SetDefault(logger.NewEnvLogger("[loadgate]"))
	}
}

// Execute runs the root command and exits with the right status.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}

	if MachineMode() {
		WriteJSONFromError(os.Stdout, err) //nolint:errcheck // Exiting anyway
		os.Exit(1)
	}

	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "%s Unknown command %q\n\n  Run 'loadgate --help' to see available commands.\n",
				ui.SymbolFail, name)
			os.Exit(1)
		}
	}

	fmt.Fprint(os.Stderr, err.Error())
	if !strings.HasSuffix(err.Error(), "\n") {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(1)
}

// isUnknownCommandError reports whether cobra rejected the command line.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "loadgate"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
