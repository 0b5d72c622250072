// Package config loads workspace configuration in three layers:
// embedded defaults, the [workspace] section of the workspace's
// lodge.toml, and LODGE_* environment variables, each overriding the
// previous.
package config

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lodge-sh/lodge/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Environment variable overrides.
const (
	EnvTarget   = "LODGE_TARGET"
	EnvRegistry = "LODGE_REGISTRY"
)

// Config is the effective workspace configuration.
type Config struct {
	// TargetDir is where installed content lands. Relative values
	// resolve against the workspace root.
	TargetDir string `koanf:"target"`

	// Platforms lists the platform IDs enabled for this workspace.
	Platforms []string `koanf:"platforms"`

	// Registry is the base URL of the package registry.
	Registry string `koanf:"registry"`
}

// rawBytesProvider implements koanf's provider over in-memory bytes.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrConfigLoad, "not implemented")
}

// Load returns the effective configuration for a workspace.
func Load(workspaceDir string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading default config")
	}

	path := filepath.Join(workspaceDir, "lodge.toml")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "loading workspace config from %s", path)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("workspace", cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "decoding workspace config")
	}

	if target := os.Getenv(EnvTarget); target != "" {
		cfg.TargetDir = target
	}
	if registry := os.Getenv(EnvRegistry); registry != "" {
		cfg.Registry = registry
	}

	if !filepath.IsAbs(cfg.TargetDir) {
		cfg.TargetDir = filepath.Join(workspaceDir, cfg.TargetDir)
	}
	if len(cfg.Platforms) == 0 {
		return nil, errors.New(errors.ErrConfigInvalid, "no platforms enabled")
	}
	return cfg, nil
}
