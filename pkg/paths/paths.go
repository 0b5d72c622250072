// Package paths centralizes filesystem locations: the workspace root
// plus the XDG base directories lodge keeps its own data under.
// Environment variables override every location.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Environment variable names.
const (
	// EnvWorkspace overrides workspace root discovery.
	EnvWorkspace = "LODGE_WORKSPACE"

	// EnvDataDir overrides the XDG data directory for lodge.
	EnvDataDir = "LODGE_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for lodge.
	EnvConfigDir = "LODGE_CONFIG_DIR"

	// EnvCacheDir overrides the XDG cache directory for lodge.
	EnvCacheDir = "LODGE_CACHE_DIR"
)

// appDir is the subdirectory lodge claims under each XDG base.
const appDir = "lodge"

// Paths resolves lodge's directories for one invocation.
type Paths struct {
	workspace string
	data      string
	config    string
	cache     string
}

// New resolves all paths. The workspace root comes from the explicit
// argument, then LODGE_WORKSPACE, then the current directory.
func New(workspaceFlag string) (*Paths, error) {
	workspace := workspaceFlag
	if workspace == "" {
		workspace = os.Getenv(EnvWorkspace)
	}
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workspace = cwd
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}

	return &Paths{
		workspace: abs,
		data:      overridden(EnvDataDir, filepath.Join(xdg.DataHome, appDir)),
		config:    overridden(EnvConfigDir, filepath.Join(xdg.ConfigHome, appDir)),
		cache:     overridden(EnvCacheDir, filepath.Join(xdg.CacheHome, appDir)),
	}, nil
}

func overridden(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	return fallback
}

// WorkspaceRoot is the directory holding the workspace manifest and
// the provenance index.
func (p *Paths) WorkspaceRoot() string { return p.workspace }

// DataDir holds durable lodge data (fetched package content).
func (p *Paths) DataDir() string { return p.data }

// ConfigDir holds user-level lodge configuration.
func (p *Paths) ConfigDir() string { return p.config }

// CacheDir holds discardable download caches.
func (p *Paths) CacheDir() string { return p.cache }

// ManifestFile is the workspace's lodge.toml path.
func (p *Paths) ManifestFile() string {
	return filepath.Join(p.workspace, "lodge.toml")
}
