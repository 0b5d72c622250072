package lodge

import (
	"github.com/lodge-sh/lodge/pkg/config"
	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/filesystem"
	"github.com/lodge-sh/lodge/pkg/paths"
	"github.com/lodge-sh/lodge/pkg/platforms"
	"github.com/lodge-sh/lodge/pkg/types"
)

// env is the resolved per-invocation environment shared by commands.
type env struct {
	fs        types.FS
	paths     *paths.Paths
	cfg       *config.Config
	platforms []types.Platform
}

func loadEnv(flags *rootFlags) (*env, error) {
	p, err := paths.New(flags.workspace)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p.WorkspaceRoot())
	if err != nil {
		return nil, err
	}

	table, err := platforms.Load(p.WorkspaceRoot())
	if err != nil {
		return nil, err
	}

	enabled := make([]types.Platform, 0, len(cfg.Platforms))
	for _, id := range cfg.Platforms {
		platform, ok := platforms.Get(table, id)
		if !ok {
			return nil, errors.Newf(errors.ErrConfigInvalid, "unknown platform %q enabled in workspace config", id)
		}
		enabled = append(enabled, platform)
	}

	return &env{
		fs:        filesystem.NewOS(),
		paths:     p,
		cfg:       cfg,
		platforms: enabled,
	}, nil
}
