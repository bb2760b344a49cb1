package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/loadgate/internal/config"
	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/session"
	"github.com/rileyhilliard/loadgate/internal/ui"
)

var sessionJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the once-per-session flag",
	Long: `Inspect or clear the flag that --once-per-session runs leave behind.

A session is named by session.id in the config, then $LOADGATE_SESSION, then
the parent process (your shell).

Examples:
  loadgate session status
  loadgate session reset
  export LOADGATE_SESSION=$(loadgate session id)`,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether this session already completed a run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		machineMode = sessionJSON
		return SessionStatus(cfgFile, cmd.OutOrStdout(), sessionJSON)
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the flag so the next run probes again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return SessionReset(cfgFile, cmd.OutOrStdout())
	},
}

var sessionIDCmd = &cobra.Command{
	Use:   "id",
	Short: "Print a fresh session ID",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), session.NewID())
	},
}

func init() {
	sessionStatusCmd.Flags().BoolVar(&sessionJSON, "json", false, "print status as JSON")
	sessionCmd.AddCommand(sessionStatusCmd, sessionResetCmd, sessionIDCmd)
	rootCmd.AddCommand(sessionCmd)
}

// SessionInfo is the status of the current session's flag.
type SessionInfo struct {
	ID          string     `json:"id"`
	Backend     string     `json:"backend"`
	Path        string     `json:"path,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// openConfiguredStore loads config and opens the session store it names.
func openConfiguredStore(configPath string) (session.Store, SessionInfo, error) {
	cfg, _, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, SessionInfo{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, SessionInfo{}, err
	}

	info := SessionInfo{
		ID:      session.ResolveID(cfg.Session.ID),
		Backend: cfg.Session.Backend,
	}
	if info.Backend != session.BackendMemory {
		info.Path = cfg.Session.ResolvedPath()
	}

	store, err := session.Open(info.Backend, info.Path, info.ID)
	if err != nil {
		return nil, info, err
	}
	return store, info, nil
}

// SessionStatus reports whether the current session has completed a run.
func SessionStatus(configPath string, w io.Writer, asJSON bool) error {
	store, info, err := openConfiguredStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // Read-only use

	v, ok, err := store.Get(gate.DefaultSessionKey)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to read the session flag",
			"Check that "+info.Path+" is readable")
	}
	if ok && v != "" {
		info.Completed = true
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			info.CompletedAt = &ts
		}
	}

	if asJSON {
		return WriteJSONSuccess(w, info)
	}

	fmt.Fprintf(w, "session: %s\n", info.ID)
	fmt.Fprintf(w, "backend: %s\n", info.Backend)
	if info.Path != "" {
		fmt.Fprintf(w, "path:    %s\n", info.Path)
	}
	switch {
	case info.CompletedAt != nil:
		fmt.Fprintf(w, "%s Completed at %s\n", ui.SymbolComplete, info.CompletedAt.Local().Format(time.DateTime))
	case info.Completed:
		fmt.Fprintf(w, "%s Completed\n", ui.SymbolComplete)
	default:
		fmt.Fprintf(w, "%s Not completed yet\n", ui.SymbolSkipped)
	}
	return nil
}

// SessionReset deletes the current session's flag.
func SessionReset(configPath string, w io.Writer) error {
	store, info, err := openConfiguredStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // Delete already reported

	if err := store.Delete(gate.DefaultSessionKey); err != nil {
		return errors.WrapWithCode(err, errors.ErrSession,
			"Failed to clear the session flag",
			"Check that "+info.Path+" is writable")
	}
	fmt.Fprintf(w, "%s Cleared session %s\n", ui.SymbolSuccess, info.ID)
	return nil
}
