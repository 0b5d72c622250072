// Package platforms holds the static table of consuming conventions
// content is projected into. First-party definitions ship embedded;
// workspace configuration may layer additional platforms or override
// fields, but the loaded table is read-only to the rest of the system.
package platforms

import (
	_ "embed"
	"os"
	"path/filepath"
	"sort"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/types"
)

//go:embed embedded/platforms.toml
var embeddedTable []byte

// rawBytesProvider implements koanf's provider over in-memory bytes.
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrConfigLoad, "not implemented")
}

type platformTOML struct {
	RootDir        string     `koanf:"rootDir"`
	RootFile       string     `koanf:"rootFile"`
	CommentLeader  string     `koanf:"commentLeader"`
	CommentTrailer string     `koanf:"commentTrailer"`
	Preserve       []string   `koanf:"preserve"`
	Flows          []flowTOML `koanf:"flows"`
}

type flowTOML struct {
	Source   string      `koanf:"source"`
	Target   string      `koanf:"target"`
	Strategy string      `koanf:"strategy"`
	Switch   *switchTOML `koanf:"switch"`
}

type switchTOML struct {
	Field   string     `koanf:"field"`
	Default *string    `koanf:"default"`
	Cases   []caseTOML `koanf:"cases"`
}

type caseTOML struct {
	Pattern any    `koanf:"pattern"`
	Value   string `koanf:"value"`
}

// Defaults returns the embedded platform table.
func Defaults() ([]types.Platform, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: embeddedTable}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading embedded platform table")
	}
	return decode(k)
}

// Load returns the embedded table layered with any platform entries in
// the workspace's lodge.toml. Workspace entries with a new ID add
// platforms; entries reusing an ID override that platform's fields.
func Load(workspaceDir string) ([]types.Platform, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: embeddedTable}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "loading embedded platform table")
	}

	path := filepath.Join(workspaceDir, "lodge.toml")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "loading workspace config from %s", path)
		}
	}

	return decode(k)
}

// Get returns the platform with the given ID, or false.
func Get(table []types.Platform, id string) (types.Platform, bool) {
	for _, platform := range table {
		if platform.ID == id {
			return platform, true
		}
	}
	return types.Platform{}, false
}

func decode(k *koanf.Koanf) ([]types.Platform, error) {
	raw := map[string]platformTOML{}
	if err := k.Unmarshal("platforms", &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "decoding platform table")
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := make([]types.Platform, 0, len(ids))
	for _, id := range ids {
		platform, err := convert(id, raw[id])
		if err != nil {
			return nil, err
		}
		table = append(table, platform)
	}
	return table, nil
}

func convert(id string, raw platformTOML) (types.Platform, error) {
	platform := types.Platform{
		ID:             id,
		RootDir:        raw.RootDir,
		RootFile:       raw.RootFile,
		CommentLeader:  raw.CommentLeader,
		CommentTrailer: raw.CommentTrailer,
		Preserve:       raw.Preserve,
	}
	if platform.RootDir == "" {
		return platform, errors.Newf(errors.ErrConfigInvalid, "platform %q has no rootDir", id)
	}

	for _, rawFlow := range raw.Flows {
		flow, err := convertFlow(id, rawFlow)
		if err != nil {
			return platform, err
		}
		platform.Flows = append(platform.Flows, flow)
	}
	return platform, nil
}

func convertFlow(platformID string, raw flowTOML) (types.Flow, error) {
	if raw.Source == "" {
		return types.Flow{}, errors.Newf(errors.ErrConfigInvalid,
			"platform %q has a flow with no source pattern", platformID)
	}

	strategy, err := types.ParseMergeStrategy(raw.Strategy)
	if err != nil {
		return types.Flow{}, errors.Wrapf(err, errors.ErrConfigInvalid,
			"platform %q flow %q", platformID, raw.Source)
	}

	flow := types.Flow{Source: raw.Source, Strategy: strategy}
	if raw.Switch != nil {
		expr := &types.SwitchExpr{Field: raw.Switch.Field, Default: raw.Switch.Default}
		if expr.Field == "" {
			return flow, errors.Newf(errors.ErrConfigInvalid,
				"platform %q flow %q switch has no field", platformID, raw.Source)
		}
		for _, c := range raw.Switch.Cases {
			expr.Cases = append(expr.Cases, types.SwitchCase{Pattern: c.Pattern, Value: c.Value})
		}
		flow.Target = types.TargetPattern{Switch: expr}
		return flow, nil
	}

	flow.Target = types.TargetPattern{Literal: raw.Target}
	return flow, nil
}
