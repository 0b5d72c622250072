// Package flows implements the flow match and merge engine: matching a
// resolved package's files against a platform's transformation rules,
// resolving dynamic target paths, merging content into the target tree
// with per-key provenance, and resolving cross-package write conflicts
// by priority.
package flows

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/types"
)

// Vars is the variable context switch expressions and target templates
// resolve against: package name, platform id, detected root directory,
// version.
type Vars map[string]any

// hasGlobMeta reports whether a pattern string uses glob matching
// rather than exact comparison.
func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// matchSource reports whether a flow's source pattern covers a
// source-relative file path.
func matchSource(pattern, rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	if hasGlobMeta(pattern) {
		ok, err := doublestar.Match(pattern, rel)
		return err == nil && ok
	}
	return path.Clean(pattern) == rel
}

// matchCase matches one switch arm: glob for strings with
// metacharacters, path-normalized comparison for plain strings, deep
// structural equality for anything else.
func matchCase(pattern any, value any) bool {
	patternStr, patternIsStr := pattern.(string)
	if !patternIsStr {
		return reflect.DeepEqual(pattern, value)
	}
	valueStr, valueIsStr := value.(string)
	if !valueIsStr {
		valueStr = fmt.Sprint(value)
	}
	if hasGlobMeta(patternStr) {
		ok, err := doublestar.Match(patternStr, valueStr)
		return err == nil && ok
	}
	return path.Clean(patternStr) == path.Clean(valueStr)
}

// resolveSwitch evaluates a switch expression against the variable
// context. Cases run in declared order, first match wins; a missing
// default with no matching case is a configuration error, not a
// runtime data error.
func resolveSwitch(sw *types.SwitchExpr, vars Vars) (string, error) {
	value, ok := vars[sw.Field]
	if !ok {
		return "", errors.Newf(errors.ErrFlowInvalid,
			"switch references unknown field %q", sw.Field)
	}
	for _, c := range sw.Cases {
		if matchCase(c.Pattern, value) {
			return c.Value, nil
		}
	}
	if sw.Default != nil {
		return *sw.Default, nil
	}
	return "", errors.Newf(errors.ErrFlowInvalid,
		"switch on %q matched no case and has no default (value %v)", sw.Field, value)
}

// expandTemplate substitutes {var} placeholders from the variable
// context. An unknown placeholder is a configuration error.
func expandTemplate(tpl string, vars Vars) (string, error) {
	var out strings.Builder
	for {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			out.WriteString(tpl)
			return out.String(), nil
		}
		end := strings.IndexByte(tpl[open:], '}')
		if end < 0 {
			out.WriteString(tpl)
			return out.String(), nil
		}
		name := tpl[open+1 : open+end]
		value, ok := vars[name]
		if !ok {
			return "", errors.Newf(errors.ErrFlowInvalid,
				"target pattern references unknown variable %q", name)
		}
		out.WriteString(tpl[:open])
		out.WriteString(fmt.Sprint(value))
		tpl = tpl[open+end+1:]
	}
}

// staticPrefix returns the directory part of a source pattern that
// precedes its first glob metacharacter. For "commands/**" that is
// "commands/"; for "**" or a bare filename it is empty.
func staticPrefix(pattern string) string {
	static := pattern
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		static = pattern[:i]
	}
	slash := strings.LastIndexByte(static, '/')
	if slash < 0 {
		return ""
	}
	return static[:slash+1]
}

// ResolveTarget computes the target-relative path for one matched
// source file. A target ending in "/" is a directory: the source's
// path relative to the pattern's static prefix is appended under it,
// so "commands/**" into "commands/" lands deploy.md at
// "commands/deploy.md", not "commands/commands/deploy.md".
func ResolveTarget(flow types.Flow, sourceRel string, vars Vars) (string, error) {
	local := Vars{}
	for k, v := range vars {
		local[k] = v
	}
	local["source"] = filepath.ToSlash(sourceRel)
	local["basename"] = path.Base(filepath.ToSlash(sourceRel))

	var raw string
	var err error
	switch {
	case flow.Target.Switch != nil:
		raw, err = resolveSwitch(flow.Target.Switch, local)
	default:
		raw = flow.Target.Literal
	}
	if err != nil {
		return "", err
	}

	expanded, err := expandTemplate(raw, local)
	if err != nil {
		return "", err
	}
	if expanded == "" || strings.HasSuffix(expanded, "/") {
		rel := strings.TrimPrefix(filepath.ToSlash(sourceRel), staticPrefix(flow.Source))
		expanded = expanded + rel
	}
	return path.Clean(expanded), nil
}

// MatchFlow returns the first flow whose source pattern covers the
// file, preserving declaration order.
func MatchFlow(flowList []types.Flow, rel string) (types.Flow, bool) {
	for _, f := range flowList {
		if matchSource(f.Source, rel) {
			return f, true
		}
	}
	return types.Flow{}, false
}
