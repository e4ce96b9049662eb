// Package classify infers the environment tag for a source file from its
// path, using a configured pattern table plus path-segment heuristics, so
// arbitrary directory conventions work without per-deployment code changes.
package classify

import (
	"strings"

	"github.com/sandeepmv/vcflow/internal/config"
	"github.com/sandeepmv/vcflow/pkg/models"
)

// environment keywords recognized inside a path segment.
var environmentKeywords = []string{"prod", "dev", "test", "staging"}

// Classifier resolves environment tags from file paths.
type Classifier struct {
	patterns []config.EnvironmentPattern
}

// New creates a Classifier with the given ordered pattern table.
func New(patterns []config.EnvironmentPattern) *Classifier {
	return &Classifier{patterns: patterns}
}

// Classify returns the environment tag for a path. Total: every field
// defaults to "unknown". The pattern table is scanned in order and the first
// pattern found anywhere in the path wins. Unmatched paths fall back to two
// independent segment heuristics: a "client-"/"Client-" prefix sets the
// client, and a segment containing an environment keyword sets the
// environment. Both may fire on the same path.
func (c *Classifier) Classify(path string) models.EnvironmentTag {
	tag := models.EnvironmentTag{
		Environment: "unknown",
		Client:      "unknown",
		Datacenter:  "unknown",
	}

	for _, p := range c.patterns {
		if strings.Contains(path, p.Pattern) {
			if p.Environment != "" {
				tag.Environment = p.Environment
			}
			if p.Client != "" {
				tag.Client = p.Client
			}
			if p.Datacenter != "" {
				tag.Datacenter = p.Datacenter
			}
			return tag
		}
	}

	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if strings.HasPrefix(part, "client-") || strings.HasPrefix(part, "Client-") {
			tag.Client = part
		} else if containsAny(part, environmentKeywords) {
			tag.Environment = part
		}
	}

	return tag
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
