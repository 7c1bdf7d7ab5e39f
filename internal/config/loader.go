package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// maxConfigFileSize caps the config file to keep a corrupted or
	// hostile file from exhausting memory.
	maxConfigFileSize = 1024 * 1024

	// envPrefix namespaces the override variables, e.g.
	// AGENTGOV_SERVER_ADDR -> server.addr.
	envPrefix = "AGENTGOV_"
)

// Load reads configuration with the precedence (highest first):
// environment variables, the YAML file at path, built-in defaults.
// An empty path or a missing file is fine; env overrides and
// defaults still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if content, ok, err := readConfigFile(path); err != nil {
			return nil, err
		} else if ok {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	// AGENTGOV_SERVER_ADDR -> server.addr; the first underscore after
	// the prefix separates section from field, later underscores stay.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(trimmed, "_", 2)
		if len(parts) == 1 {
			return parts[0]
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile opens and validates the config file through one file
// descriptor to avoid a stat/open race. A missing file returns
// ok=false without an error.
func readConfigFile(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, false, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	// Config may carry NATS credentials in the URL; require
	// owner-only permissions except on Windows.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return nil, false, fmt.Errorf("config file %s has permissions %04o, want 0600", path, info.Mode().Perm())
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, false, fmt.Errorf("reading config file: %w", err)
	}
	return content, true, nil
}
