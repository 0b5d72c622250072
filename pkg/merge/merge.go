// Package merge implements the structural merge semantics behind the
// deep and shallow flow strategies, together with the dotted-key
// bookkeeping that makes provenance-driven uninstall possible. Nodes
// come in exactly three kinds: scalar, list, map. Lists and scalars
// replace wholesale at any depth; only maps merge.
package merge

import (
	"sort"
	"strings"
)

// Deep merges src into dst recursively. Child maps merge; lists and
// scalars replace wholesale at any depth. The returned key list names
// every leaf dotted path the write touched, sorted.
func Deep(dst, src map[string]any) (map[string]any, []string) {
	if dst == nil {
		dst = map[string]any{}
	}
	keys := deepInto(dst, src, nil)
	sort.Strings(keys)
	return dst, keys
}

func deepInto(dst, src map[string]any, prefix []string) []string {
	var keys []string
	for k, v := range src {
		path := append(append([]string(nil), prefix...), k)
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			keys = append(keys, deepInto(dstMap, srcMap, path)...)
			continue
		}
		if srcIsMap {
			// A fresh subtree: copy and record its leaves.
			copied := map[string]any{}
			keys = append(keys, deepInto(copied, srcMap, path)...)
			if len(srcMap) == 0 {
				keys = append(keys, joinPath(path))
			}
			dst[k] = copied
			continue
		}
		dst[k] = v
		keys = append(keys, joinPath(path))
	}
	return keys
}

// Shallow merges only top-level keys; any nested structure under a
// written key is replaced wholesale. The returned key list holds the
// top-level keys written, sorted.
func Shallow(dst, src map[string]any) (map[string]any, []string) {
	if dst == nil {
		dst = map[string]any{}
	}
	keys := make([]string, 0, len(src))
	for k, v := range src {
		dst[k] = v
		keys = append(keys, escapeSegment(k))
	}
	sort.Strings(keys)
	return dst, keys
}

// DeleteKeys removes every listed dotted key path from doc, pruning
// map branches that become empty along the way. Paths that no longer
// exist are ignored.
func DeleteKeys(doc map[string]any, keys []string) map[string]any {
	for _, key := range keys {
		deletePath(doc, splitPath(key))
	}
	return doc
}

func deletePath(doc map[string]any, path []string) {
	if len(path) == 0 || doc == nil {
		return
	}
	head := path[0]
	if len(path) == 1 {
		delete(doc, head)
		return
	}
	child, ok := doc[head].(map[string]any)
	if !ok {
		return
	}
	deletePath(child, path[1:])
	if len(child) == 0 {
		delete(doc, head)
	}
}

// IsEmpty reports whether a document has no enumerable content left:
// no keys, or only empty-map values all the way down.
func IsEmpty(doc map[string]any) bool {
	for _, v := range doc {
		if child, ok := v.(map[string]any); ok {
			if !IsEmpty(child) {
				return false
			}
			continue
		}
		return false
	}
	return true
}

// Dotted paths escape literal dots in key segments so a key such as
// "a.b" survives the round trip through provenance.

func joinPath(segments []string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeSegment(s)
	}
	return strings.Join(escaped, ".")
}

func escapeSegment(s string) string {
	return strings.ReplaceAll(s, ".", `\.`)
}

func splitPath(path string) []string {
	var segments []string
	var current strings.Builder
	escaped := false
	for _, r := range path {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	segments = append(segments, current.String())
	return segments
}
