package types

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileLink is a soft reference to an externally-linked file (trace CSV,
// events CSV, snapshot TIFF). It stores enough redundancy to survive
// directory moves: the last known absolute path, a path relative to the
// project directory, an absolute hint from a previous location, and a cheap
// content signature ("<size>-<mtime>").
//
// A FileLink never holds an open handle and tolerates the referenced file
// not existing.
type FileLink struct {
	Path      string // last known absolute path, may be stale
	Relative  string // path relative to the project directory
	Hint      string // absolute path recorded at an earlier save
	Signature string // "<size>-<mtime>" of the content at last link time
}

// PathSignature returns the "<size>-<mtime>" signature for path, or "" when
// the file cannot be stat'ed.
func PathSignature(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d-%d", info.Size(), info.ModTime().Unix())
}

// NewFileLink builds a link record for path relative to baseDir. The
// signature is taken from the file when it exists.
func NewFileLink(path, baseDir string) FileLink {
	link := FileLink{Path: path, Hint: path}
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil {
			link.Relative = filepath.Clean(rel)
		}
	}
	if link.Relative == "" {
		link.Relative = filepath.Base(path)
	}
	link.Signature = PathSignature(path)
	return link
}

// IsZero reports whether the link carries no path information at all.
func (l FileLink) IsZero() bool {
	return l.Path == "" && l.Relative == "" && l.Hint == ""
}

// Resolve returns the best on-disk candidate for the linked file. Candidates
// are tried in order: the stored absolute path, the relative path resolved
// against baseDir, then the absolute hint. The first that exists wins. When
// none exist the most path-complete candidate is returned with ok=false so a
// caller can prompt the user to relink.
func (l FileLink) Resolve(baseDir string) (path string, ok bool) {
	var candidates []string
	if l.Path != "" {
		candidates = append(candidates, l.Path)
	}
	if l.Relative != "" && baseDir != "" {
		candidates = append(candidates, filepath.Join(baseDir, l.Relative))
	}
	if l.Hint != "" {
		candidates = append(candidates, l.Hint)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], false
}

// Stale reports whether the file at path no longer matches the recorded
// signature. An empty signature or missing file is not considered stale.
func (l FileLink) Stale(path string) bool {
	if l.Signature == "" {
		return false
	}
	sig := PathSignature(path)
	return sig != "" && sig != l.Signature
}
