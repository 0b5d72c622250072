package flows

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/format"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/merge"
	"github.com/lodge-sh/lodge/pkg/types"
)

// Write is one planned file write: a matched source file headed for a
// target path under the workspace with a specific strategy. Conflict
// resolution runs over planned writes before anything touches disk.
type Write struct {
	PackageName string
	Priority    int
	SourceRel   string
	TargetRel   string
	Strategy    types.MergeStrategy
	Markers     Markers
	Data        []byte
}

// Engine matches and applies flows for installation contexts.
type Engine struct {
	fs     types.FS
	logger zerolog.Logger
}

// NewEngine returns an Engine operating on the given filesystem.
func NewEngine(fs types.FS) *Engine {
	return &Engine{fs: fs, logger: logging.GetLogger("flows")}
}

// PlanWrites matches a context's source files against one platform's
// flows and resolves every target path. No file outside the source
// tree is read. Returned writes are ordered by source path for
// determinism.
func (e *Engine) PlanWrites(ictx *types.InstallationContext, platform types.Platform) ([]Write, error) {
	base := ictx.Base()
	files, err := e.sourceFiles(base)
	if err != nil {
		return nil, err
	}

	vars := Vars{
		"package":  ictx.PackageName,
		"platform": platform.ID,
		"root":     filepath.Base(base),
		"version":  ictx.Version,
	}

	markers := DefaultMarkers
	if platform.CommentLeader != "" {
		markers = Markers{Leader: platform.CommentLeader, Trailer: platform.CommentTrailer}
	}

	var writes []Write
	for _, rel := range files {
		if ictx.MatchedPattern != "" {
			ok, err := doublestar.Match(ictx.MatchedPattern, rel)
			if err != nil || !ok {
				continue
			}
		}
		flow, ok := MatchFlow(platform.Flows, rel)
		if !ok {
			continue
		}
		target, err := ResolveTarget(flow, rel, vars)
		if err != nil {
			// Misconfigured flows are fatal for the run, not
			// skippable data problems.
			return nil, err
		}
		data, err := e.fs.ReadFile(filepath.Join(base, filepath.FromSlash(rel)))
		if err != nil {
			ictx.Warnf("skipping unreadable source file %s: %v", rel, err)
			continue
		}
		targetRel := target
		if flow.Strategy == types.MergeComposite && platform.RootFile != "" && flow.Target.Literal == "" && flow.Target.Switch == nil {
			targetRel = platform.RootFile
		}
		writes = append(writes, Write{
			PackageName: ictx.PackageName,
			Priority:    ictx.Priority,
			SourceRel:   rel,
			TargetRel:   joinRel(platform.RootDir, targetRel),
			Strategy:    flow.Strategy,
			Markers:     markers,
			Data:        data,
		})
	}
	return writes, nil
}

// sourceFiles walks the base directory and returns the sorted
// source-relative paths of all regular files.
func (e *Engine) sourceFiles(base string) ([]string, error) {
	var files []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := e.fs.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			childRel := entry.Name()
			if rel != "" {
				childRel = rel + "/" + entry.Name()
			}
			if entry.IsDir() {
				if err := walk(filepath.Join(dir, entry.Name()), childRel); err != nil {
					return err
				}
				continue
			}
			files = append(files, childRel)
		}
		return nil
	}
	if err := walk(base, ""); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Apply executes resolved writes against the workspace target
// directory, in the given order, and returns the provenance records
// produced, keyed by package then source-relative path. Unparseable
// existing targets degrade to a per-file warning; the rest of the flow
// continues.
func (e *Engine) Apply(targetDir string, writes []Write) (map[string]map[string][]types.FlowWriteRecord, []string, error) {
	records := make(map[string]map[string][]types.FlowWriteRecord)
	var warnings []string

	record := func(w Write, rec types.FlowWriteRecord) {
		key := types.NormalizeName(w.PackageName)
		if records[key] == nil {
			records[key] = make(map[string][]types.FlowWriteRecord)
		}
		records[key][w.SourceRel] = append(records[key][w.SourceRel], rec)
	}

	for _, w := range writes {
		targetPath := filepath.Join(targetDir, filepath.FromSlash(w.TargetRel))
		if err := e.fs.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return records, warnings, err
		}

		switch w.Strategy {
		case types.MergeReplace:
			if err := e.fs.WriteFile(targetPath, w.Data, 0644); err != nil {
				return records, warnings, err
			}
			record(w, types.FlowWriteRecord{Target: w.TargetRel, Strategy: types.MergeReplace, Bare: true})

		case types.MergeDeep, types.MergeShallow:
			keys, warn, err := e.applyMerge(targetPath, w)
			if warn != "" {
				warnings = append(warnings, warn)
				continue
			}
			if err != nil {
				return records, warnings, err
			}
			record(w, types.FlowWriteRecord{
				Source:      w.SourceRel,
				Target:      w.TargetRel,
				Strategy:    w.Strategy,
				KeysWritten: keys,
			})

		case types.MergeComposite:
			existing, err := e.fs.ReadFile(targetPath)
			if err != nil {
				existing = nil
			}
			out := WriteSection(existing, w.Markers, w.PackageName, w.Data)
			if err := e.fs.WriteFile(targetPath, out, 0644); err != nil {
				return records, warnings, err
			}
			record(w, types.FlowWriteRecord{
				Source:   w.SourceRel,
				Target:   w.TargetRel,
				Strategy: types.MergeComposite,
			})
		}
	}
	return records, warnings, nil
}

// applyMerge performs one deep or shallow merge write. A target that
// exists but cannot be parsed in its declared format yields a warning
// and no write.
func (e *Engine) applyMerge(targetPath string, w Write) ([]string, string, error) {
	codec, ok := format.ForPath(targetPath)
	if !ok {
		return nil, "no structured format for " + w.TargetRel + ", skipping merge write", nil
	}

	incoming, err := codec.Decode(w.Data)
	if err != nil {
		return nil, "source file " + w.SourceRel + " is not valid " + codec.Name() + ": " + err.Error(), nil
	}

	existing := map[string]any{}
	if data, err := e.fs.ReadFile(targetPath); err == nil {
		existing, err = codec.Decode(data)
		if err != nil {
			return nil, "target " + w.TargetRel + " exists but cannot be parsed as " + codec.Name() + ", skipping", nil
		}
	}

	var keys []string
	if w.Strategy == types.MergeDeep {
		existing, keys = merge.Deep(existing, incoming)
	} else {
		existing, keys = merge.Shallow(existing, incoming)
	}

	out, err := codec.Encode(existing)
	if err != nil {
		return nil, "", err
	}
	if err := e.fs.WriteFile(targetPath, out, 0644); err != nil {
		return nil, "", err
	}
	e.logger.Debug().Str("target", w.TargetRel).Str("package", w.PackageName).
		Int("keys", len(keys)).Msg("merge write applied")
	return keys, "", nil
}

func joinRel(parts ...string) string {
	joined := ""
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		if joined == "" {
			joined = p
		} else {
			joined += "/" + p
		}
	}
	return joined
}
