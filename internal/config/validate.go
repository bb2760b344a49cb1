package config

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/session"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but loadgate only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest loadgate release")
	}

	if err := validateGate(cfg.Gate); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'gate' section in your .loadgate.yaml.")
	}
	if err := validateIndicator(cfg.Indicator); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'indicator' section in your .loadgate.yaml.")
	}
	if err := validateSession(cfg.Session); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'session' section in your .loadgate.yaml.")
	}
	if err := validateProbe(cfg.Probe); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'probe' section in your .loadgate.yaml.")
	}

	return nil
}

func validateGate(g GateConfig) error {
	if err := g.ToGate().Validate(); err != nil {
		return err
	}
	if g.PollInterval <= 0 || g.PollInterval > gate.MaxPollInterval {
		return fmt.Errorf("gate.poll_interval needs to be between 1ms and %v (got %v)", gate.MaxPollInterval, g.PollInterval)
	}
	if g.SettleBudget < 0 {
		return fmt.Errorf("gate.settle_budget can't be negative (got %v)", g.SettleBudget)
	}
	if g.SettleThreshold <= 0 || g.SettleThreshold > 1 {
		return fmt.Errorf("gate.settle_threshold needs to be above 0 and at most 1 (got %v)", g.SettleThreshold)
	}
	return nil
}

func validateIndicator(ind IndicatorConfig) error {
	switch ind.Style {
	case StyleBar, StyleCircle, StyleText:
	default:
		return fmt.Errorf("indicator.style '%s' isn't valid - use 'bar', 'circle', or 'text'", ind.Style)
	}
	if ind.Width < 10 || ind.Width > 200 {
		return fmt.Errorf("indicator.width needs to be 10-200 (got %d)", ind.Width)
	}
	if err := validateColor("indicator.color", ind.Color); err != nil {
		return err
	}
	if err := validateColor("indicator.track_color", ind.TrackColor); err != nil {
		return err
	}
	if ind.FPS < 1 || ind.FPS > 240 {
		return fmt.Errorf("indicator.fps needs to be 1-240 (got %d)", ind.FPS)
	}
	if ind.Spring.Frequency <= 0 {
		return fmt.Errorf("indicator.spring.frequency needs to be positive (got %v)", ind.Spring.Frequency)
	}
	if ind.Spring.Damping <= 0 {
		return fmt.Errorf("indicator.spring.damping needs to be positive (got %v)", ind.Spring.Damping)
	}
	return nil
}

// validateColor accepts empty, hex (#RGB, #RRGGBB) or an ANSI index 0-255.
func validateColor(field, c string) error {
	if c == "" || hexColor.MatchString(c) {
		return nil
	}
	if n, err := strconv.Atoi(c); err == nil && n >= 0 && n <= 255 {
		return nil
	}
	return fmt.Errorf("%s '%s' isn't a color - use hex like '#7D56F4' or an ANSI number 0-255", field, c)
}

func validateSession(s SessionConfig) error {
	switch s.Backend {
	case session.BackendMemory, session.BackendFile, session.BackendSQLite:
		return nil
	default:
		return fmt.Errorf("session.backend '%s' isn't valid - use 'memory', 'file', or 'sqlite'", s.Backend)
	}
}

func validateProbe(p ProbeConfig) error {
	if p.Interval <= 0 {
		return fmt.Errorf("probe.interval needs to be positive (got %v)", p.Interval)
	}
	if p.AttemptTimeout <= 0 {
		return fmt.Errorf("probe.attempt_timeout needs to be positive (got %v)", p.AttemptTimeout)
	}
	if p.HTTPStatus != 0 && (p.HTTPStatus < 100 || p.HTTPStatus > 599) {
		return fmt.Errorf("probe.http_status %d isn't an HTTP status - use 0 to accept any 2xx/3xx", p.HTTPStatus)
	}
	if p.Quiet < 0 {
		return fmt.Errorf("probe.quiet can't be negative (got %v)", p.Quiet)
	}
	return nil
}
