package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/loadgate/internal/errors"
	"github.com/rileyhilliard/loadgate/internal/session"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".loadgate.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/loadgate"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. LOADGATE_GATE_TIMEOUT=5s.
	EnvPrefix = "LOADGATE"
)

// Load reads config from the specified path. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'loadgate init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .loadgate.yaml in current directory
// 3. .loadgate.yaml in parent directories (stops at git root or home)
// 4. ~/.config/loadgate/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		if isGitRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads the config found from explicit, or returns defaults
// (with environment overrides applied) when there is none.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "environment")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes cfg to path as YAML, replacing the file atomically.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# loadgate configuration. Durations use Go syntax: 500ms, 2s, 1m.\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to encode config",
			"This is a bug, please report it")
	}
	enc.Close()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot create config directory "+dir,
				"Check directory permissions")
		}
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write "+path,
			"Check file permissions")
	}
	return nil
}

// ResolvedPath returns the session store location with ~ and variables
// expanded. An empty path maps to the user cache directory.
func (s SessionConfig) ResolvedPath() string {
	if s.Path != "" {
		return ExpandTilde(Expand(s.Path))
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	name := "sessions.json"
	if s.Backend == session.BackendSQLite {
		name = "sessions.db"
	}
	return filepath.Join(base, "loadgate", name)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	// Unmarshal decodes duration strings through viper's default hooks.
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.Indicator.Label = Expand(cfg.Indicator.Label)
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("gate.min_hold", d.Gate.MinHold)
	v.SetDefault("gate.timeout", d.Gate.Timeout)
	v.SetDefault("gate.finish_delay", d.Gate.FinishDelay)
	v.SetDefault("gate.once_per_session", d.Gate.OncePerSession)
	v.SetDefault("gate.poll_interval", d.Gate.PollInterval)
	v.SetDefault("gate.settle_budget", d.Gate.SettleBudget)
	v.SetDefault("gate.settle_threshold", d.Gate.SettleThreshold)

	v.SetDefault("indicator.style", d.Indicator.Style)
	v.SetDefault("indicator.width", d.Indicator.Width)
	v.SetDefault("indicator.label", d.Indicator.Label)
	v.SetDefault("indicator.color", d.Indicator.Color)
	v.SetDefault("indicator.track_color", d.Indicator.TrackColor)
	v.SetDefault("indicator.show_percent", d.Indicator.ShowPercent)
	v.SetDefault("indicator.fps", d.Indicator.FPS)
	v.SetDefault("indicator.spring.frequency", d.Indicator.Spring.Frequency)
	v.SetDefault("indicator.spring.damping", d.Indicator.Spring.Damping)

	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.path", d.Session.Path)
	v.SetDefault("session.id", d.Session.ID)

	v.SetDefault("probe.interval", d.Probe.Interval)
	v.SetDefault("probe.attempt_timeout", d.Probe.AttemptTimeout)
	v.SetDefault("probe.http_status", d.Probe.HTTPStatus)
	v.SetDefault("probe.quiet", d.Probe.Quiet)
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
