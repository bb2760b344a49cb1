package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/config"
	"github.com/rileyhilliard/loadgate/internal/errors"
)

// ProbeFlags holds the readiness targets passed to wait.
type ProbeFlags struct {
	URLs  []string
	TCP   []string
	Files []string
}

// AddProbeFlags registers --url, --tcp and --file on a command.
func AddProbeFlags(cmd *cobra.Command, flags *ProbeFlags) {
	cmd.Flags().StringArrayVar(&flags.URLs, "url", nil, "wait until a GET to this URL succeeds (repeatable)")
	cmd.Flags().StringArrayVar(&flags.TCP, "tcp", nil, "wait until host:port accepts connections (repeatable)")
	cmd.Flags().StringArrayVar(&flags.Files, "file", nil, "wait until this file exists (repeatable)")
}

// Empty reports whether no probe was requested.
func (f ProbeFlags) Empty() bool {
	return len(f.URLs) == 0 && len(f.TCP) == 0 && len(f.Files) == 0
}

// GateFlags override the gate section of the config for one run.
type GateFlags struct {
	MinHold        string
	Timeout        string
	FinishDelay    string
	OncePerSession bool
}

// AddGateFlags registers the timing overrides on a command.
func AddGateFlags(cmd *cobra.Command, flags *GateFlags) {
	cmd.Flags().StringVar(&flags.MinHold, "min-hold", "", "minimum time the indicator stays up (e.g., 500ms, 2s)")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "", "give up waiting for readiness after this long (0 waits forever)")
	cmd.Flags().StringVar(&flags.FinishDelay, "finish-delay", "", "hold the full indicator this long before exiting")
	cmd.Flags().BoolVar(&flags.OncePerSession, "once-per-session", false, "skip probes if this session already completed a run")
}

// Apply writes the flags that were set onto g.
func (f GateFlags) Apply(g *config.GateConfig) error {
	overrides := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"min-hold", f.MinHold, &g.MinHold},
		{"timeout", f.Timeout, &g.Timeout},
		{"finish-delay", f.FinishDelay, &g.FinishDelay},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		d, err := ParseDurationFlag(o.flag, o.value)
		if err != nil {
			return err
		}
		*o.dst = d
	}
	if f.OncePerSession {
		g.OncePerSession = true
	}
	return nil
}

// ParseDurationFlag parses a duration flag value. Bare "0" is accepted.
func ParseDurationFlag(flag, value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid duration for --%s", value, flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if d < 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("--%s can't be negative (got %s)", flag, value),
			"Use 0 or a positive duration.")
	}
	return d, nil
}
