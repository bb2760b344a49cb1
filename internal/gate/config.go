package gate

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/loadgate/internal/errors"
)

// Config is the immutable input of one gate run.
type Config struct {
	// MinimumHold is the floor duration the gate stays active, ready or not.
	MinimumHold time.Duration

	// Timeout is the hard ceiling on waiting for readiness. Zero disables it.
	Timeout time.Duration

	// FinishDelay is an extra hold after progress reaches 100%.
	FinishDelay time.Duration

	// RunOncePerSession skips readiness when a previous run in the same
	// session already completed. The minimum hold still applies.
	RunOncePerSession bool
}

// Validate reports negative durations as config errors.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value time.Duration
	}{
		{"minimum hold", c.MinimumHold},
		{"timeout", c.Timeout},
		{"finish delay", c.FinishDelay},
	}
	for _, f := range fields {
		if f.value < 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Gate %s can't be negative (got %s)", f.name, f.value),
				"Use 0 or a positive duration like 500ms or 2s")
		}
	}
	return nil
}

// normalized clamps negative durations to zero.
func (c Config) normalized() Config {
	if c.MinimumHold < 0 {
		c.MinimumHold = 0
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.FinishDelay < 0 {
		c.FinishDelay = 0
	}
	return c
}
