// Package project is the domain mapping layer: it translates the in-memory
// Project/Experiment/Sample graph to and from relational store rows. Callers
// above it never touch SQL; packages below it never see the graph.
package project

import (
	"path/filepath"

	"github.com/vasolab/vasostore/pkg/types"
)

// linkToValue serializes a soft link as its stored payload. Empty links
// serialize to null so absent links cost nothing in extra_json.
func linkToValue(link types.FileLink, baseDir string) types.Value {
	relative := link.Relative
	if relative == "" && link.Path != "" {
		if rel, err := filepath.Rel(baseDir, link.Path); err == nil {
			relative = filepath.ToSlash(rel)
		} else {
			relative = filepath.ToSlash(link.Path)
		}
	}
	hint := link.Hint
	if hint == "" {
		hint = link.Path
	}
	sig := link.Signature
	if sig == "" && link.Path != "" {
		sig = types.PathSignature(link.Path)
	}

	fields := map[string]types.Value{}
	if relative != "" {
		fields["relative"] = types.String(relative)
	}
	if hint != "" {
		fields["hint"] = types.String(hint)
	}
	if sig != "" {
		fields["sig"] = types.String(sig)
	}
	if len(fields) == 0 {
		return types.Null()
	}
	return types.Object(fields)
}

// linkFromValue reconstructs a soft link from its stored payload plus the
// separately stored path entry.
func linkFromValue(path string, v types.Value) types.FileLink {
	return types.FileLink{
		Path:      path,
		Relative:  v.Get("relative").Str(),
		Hint:      v.Get("hint").Str(),
		Signature: v.Get("sig").Str(),
	}
}

// relativize rewrites an absolute path relative to baseDir when possible.
func relativize(path, baseDir string) string {
	if path == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
