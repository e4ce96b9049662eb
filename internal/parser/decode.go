// Package parser recovers VM and alarm records from Ansible vCenter export
// documents. Input nesting is not known a priori: the extractor discriminates
// a closed set of top-level shapes, reduces each to leaf result objects, and
// runs a uniform normalization scan over every leaf.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandeepmv/vcflow/pkg/models"
)

// ErrUnsupportedFormat is returned for file extensions outside {.json, .yaml, .yml}.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Decode reads and decodes a source file by extension. The returned document
// uses JSON-style typing (map[string]any, []any) for both encodings so that
// extraction behaves identically regardless of the source format.
func Decode(path string) (any, error) {
	ext := strings.ToLower(filepath.Ext(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc any
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml %s: %w", path, err)
		}
		doc = normalizeYAML(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	return doc, nil
}

// ParseFile decodes a file and extracts its records. A decode failure is an
// error; a document that yields no records is valid empty output.
func ParseFile(path string) (*models.ExtractResult, error) {
	doc, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return Extract(doc), nil
}

// normalizeYAML rewrites yaml.v3 decoding output into JSON-style typing.
// Mappings with non-string keys are stringified rather than rejected so YAML
// and JSON inputs with identical content extract identically.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
