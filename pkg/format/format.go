// Package format provides the extension-sniffed codecs the merge
// engine and uninstaller use to parse and re-serialize structured
// target files. The format set is closed: JSON (with comments and
// trailing commas tolerated on read), YAML, and TOML. Everything else
// is opaque bytes to the rest of the system.
package format

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/lodge-sh/lodge/pkg/errors"
)

// Codec parses and serializes one structured file format. Decode
// always yields string-keyed maps so the merge engine operates on a
// single tree shape.
type Codec interface {
	Name() string
	Decode(data []byte) (map[string]any, error)
	Encode(doc map[string]any) ([]byte, error)
}

// ForPath returns the codec for a file path's extension, or false when
// the path is not a structured format lodge merges.
func ForPath(path string) (Codec, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return jsonCodec{}, true
	case ".yaml", ".yml":
		return yamlCodec{}, true
	case ".toml":
		return tomlCodec{}, true
	default:
		return nil, false
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

// Decode accepts JSON with comments and trailing commas, since target
// files in the wild (editor settings in particular) carry both.
func (jsonCodec) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	doc := map[string]any{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "parsing json")
	}
	return doc, nil
}

func (jsonCodec) Encode(doc map[string]any) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "serializing json")
	}
	return append(out, '\n'), nil
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "parsing yaml")
	}
	return normalizeMap(doc), nil
}

func (yamlCodec) Encode(doc map[string]any) ([]byte, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "serializing yaml")
	}
	return out, nil
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "parsing toml")
	}
	return doc, nil
}

func (tomlCodec) Encode(doc map[string]any) ([]byte, error) {
	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeParse, "serializing toml")
	}
	return out, nil
}

// normalizeMap rewrites nested non-string-keyed maps (which yaml can
// produce for untyped documents) into string-keyed ones.
func normalizeMap(doc map[string]any) map[string]any {
	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return normalizeMap(tv)
	case map[any]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[stringify(k)] = normalizeValue(val)
		}
		return out
	case []any:
		for i := range tv {
			tv[i] = normalizeValue(tv[i])
		}
		return tv
	default:
		return v
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, _ := json.Marshal(v)
	return string(out)
}
