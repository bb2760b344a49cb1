package config

import (
	"time"

	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/session"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Indicator styles.
const (
	StyleBar    = "bar"
	StyleCircle = "circle"
	StyleText   = "text"
)

// Config represents the complete .loadgate.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Gate      GateConfig      `yaml:"gate" mapstructure:"gate"`
	Indicator IndicatorConfig `yaml:"indicator" mapstructure:"indicator"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Probe     ProbeConfig     `yaml:"probe" mapstructure:"probe"`
}

// GateConfig holds the timing of one gate run.
type GateConfig struct {
	// MinHold is how long the indicator stays up, ready or not.
	MinHold time.Duration `yaml:"min_hold" mapstructure:"min_hold"`

	// Timeout caps the wait for readiness. 0 waits forever.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// FinishDelay holds the full indicator on screen before exiting.
	FinishDelay time.Duration `yaml:"finish_delay" mapstructure:"finish_delay"`

	// OncePerSession skips readiness on later runs in the same session.
	OncePerSession bool `yaml:"once_per_session" mapstructure:"once_per_session"`

	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	SettleBudget time.Duration `yaml:"settle_budget" mapstructure:"settle_budget"`

	// SettleThreshold is the indicator value counted as full, in (0, 1].
	SettleThreshold float64 `yaml:"settle_threshold" mapstructure:"settle_threshold"`
}

// IndicatorConfig controls how progress is drawn.
type IndicatorConfig struct {
	// Style is one of "bar", "circle" or "text".
	Style string `yaml:"style" mapstructure:"style"`

	// Width is the bar width in cells. Ignored by the other styles.
	Width int `yaml:"width" mapstructure:"width"`

	// Label is shown next to the indicator. Supports ${PROJECT} and ${USER}.
	Label string `yaml:"label" mapstructure:"label"`

	// Color and TrackColor accept hex ("#7D56F4") or ANSI ("212") values.
	Color      string `yaml:"color" mapstructure:"color"`
	TrackColor string `yaml:"track_color" mapstructure:"track_color"`

	ShowPercent bool         `yaml:"show_percent" mapstructure:"show_percent"`
	FPS         int          `yaml:"fps" mapstructure:"fps"`
	Spring      SpringConfig `yaml:"spring" mapstructure:"spring"`
}

// SpringConfig tunes the easing of the indicator.
type SpringConfig struct {
	Frequency float64 `yaml:"frequency" mapstructure:"frequency"`
	Damping   float64 `yaml:"damping" mapstructure:"damping"`
}

// SessionConfig selects where the once-per-session flag is kept.
type SessionConfig struct {
	// Backend is "memory", "file" or "sqlite".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path of the file or database. Empty uses the user cache directory.
	Path string `yaml:"path" mapstructure:"path"`

	// ID pins the session. Empty falls back to $LOADGATE_SESSION, then the
	// parent process.
	ID string `yaml:"id" mapstructure:"id"`
}

// ProbeConfig controls readiness probing for `loadgate wait`.
type ProbeConfig struct {
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// HTTPStatus is the exact status an HTTP probe expects. 0 accepts 2xx/3xx.
	HTTPStatus int `yaml:"http_status" mapstructure:"http_status"`

	// Quiet waits this long after every probe passes before reporting ready.
	Quiet time.Duration `yaml:"quiet" mapstructure:"quiet"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Gate: GateConfig{
			MinHold:         500 * time.Millisecond,
			Timeout:         30 * time.Second,
			FinishDelay:     200 * time.Millisecond,
			PollInterval:    gate.DefaultPollInterval,
			SettleBudget:    gate.DefaultSettleBudget,
			SettleThreshold: gate.DefaultSettleThreshold,
		},
		Indicator: IndicatorConfig{
			Style:       StyleBar,
			Width:       40,
			Label:       "Loading",
			Color:       "#7D56F4",
			TrackColor:  "#3C3C3C",
			ShowPercent: true,
			FPS:         60,
			Spring: SpringConfig{
				Frequency: 8.0,
				Damping:   1.0,
			},
		},
		Session: SessionConfig{
			Backend: session.BackendFile,
		},
		Probe: ProbeConfig{
			Interval:       250 * time.Millisecond,
			AttemptTimeout: 2 * time.Second,
		},
	}
}

// ToGate converts the gate section into the gate's run config.
func (g GateConfig) ToGate() gate.Config {
	return gate.Config{
		MinimumHold:       g.MinHold,
		Timeout:           g.Timeout,
		FinishDelay:       g.FinishDelay,
		RunOncePerSession: g.OncePerSession,
	}
}
