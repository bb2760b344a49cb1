// Package cli implements the loadgate command-line interface.
//
// Each Cobra command is a thin shell around an exported function (Wait,
// Preview, Init, SessionStatus) that takes an options struct and an
// io.Writer, so tests drive the behavior without going through os.Args.
//
// # Command Structure
//
//	loadgate wait [--url|--tcp|--file ...]  - Hold until probes pass, then finish the indicator
//	loadgate preview [--animate]            - Render the configured indicator
//	loadgate init                           - Create or update .loadgate.yaml
//	loadgate session [status|reset|id]      - Inspect or clear the once-per-session flag
//	loadgate version                        - Print version info
//
// # Output Modes
//
// wait picks one of three renderers. On a terminal it runs a Bubble Tea
// program that polls the gate's progress scalar. Off a terminal it prints
// a plain line every tenth of progress. With --json nothing is drawn and a
// single JSON envelope is written when the gate completes.
//
// # Exit Codes
//
// 0 when the gate completes, 1 on errors, 2 when --strict is set and
// readiness timed out, 130 when interrupted.
package cli
