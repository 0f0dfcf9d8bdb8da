package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfig names a config file when --config is not given.
const EnvConfig = "AGENTPROBE_CONFIG"

// DefaultConfigPaths lists where a config is looked for when neither
// --config nor AGENTPROBE_CONFIG is set, in order: ./agentprobe.yaml, the
// user config dir ($XDG_CONFIG_HOME or ~/.config), then /etc.
func DefaultConfigPaths() []string {
	paths := []string{"agentprobe.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "agentprobe", "config.yaml"))
	}
	return append(paths, "/etc/agentprobe/config.yaml")
}

// Resolve loads the config at FindConfig(explicit) and fills Hostname from
// os.Hostname when the file leaves it empty. The path is returned even when
// loading fails, for error messages.
func Resolve(explicit string) (*Config, string, error) {
	path, err := FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	if cfg.Hostname != "" {
		return cfg, path, nil
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, path, fmt.Errorf("resolving hostname: %w", err)
	}
	cfg.Hostname = host
	return cfg, path, nil
}

// FindConfig picks the config file: explicit if set, else $AGENTPROBE_CONFIG,
// else the first of DefaultConfigPaths that exists. A named file that is
// missing is an error rather than a fallthrough to the defaults.
func FindConfig(explicit string) (string, error) {
	named, source := explicit, "--config"
	if named == "" {
		named, source = os.Getenv(EnvConfig), EnvConfig
	}
	if named != "" {
		if _, err := os.Stat(named); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("config file not found: %s (from %s)", named, source)
			}
			return "", fmt.Errorf("config file %s: %w", named, err)
		}
		return named, nil
	}

	searched := DefaultConfigPaths()
	for _, p := range searched {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (set --config or %s, or create one of %v)", EnvConfig, searched)
}
