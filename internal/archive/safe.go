// Package archive handles zip-based project containers: safe extraction,
// readers for the legacy zip project formats, and the portable pack format
// used to move projects between machines.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vasolab/vasostore/pkg/types"
)

// zipMagic is the local-file-header signature of a zip archive.
const zipMagic = "PK\x03\x04"

// IsZip reports whether the file at path starts with a zip signature.
func IsZip(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return string(header) == zipMagic
}

// HasMember reports whether the zip at path contains the named member.
func HasMember(path, name string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ExtractZip extracts the archive into dest. Every member path is validated
// before anything is written: a member that would land outside dest fails the
// whole extraction with ErrUnsafeArchiveMember.
func ExtractZip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", zipPath, err)
	}
	defer r.Close()

	base, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	for _, f := range r.File {
		if _, err := memberDest(base, f.Name); err != nil {
			return err
		}
	}

	for _, f := range r.File {
		target, _ := memberDest(base, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", f.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.Name, err)
		}
		if err := extractMember(f, target); err != nil {
			return err
		}
	}
	return nil
}

func memberDest(base, name string) (string, error) {
	target := filepath.Join(base, filepath.FromSlash(name))
	if target != base && !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("member %q escapes destination: %w", name, types.ErrUnsafeArchiveMember)
	}
	return target, nil
}

func extractMember(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member %s: %w", f.Name, err)
	}
	defer src.Close()
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("extracting member %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	return nil
}

// writeZipDir zips the contents of srcDir into a new archive at dest, written
// through a temp name so dest never appears half-built. Member names use
// forward slashes relative to srcDir.
func writeZipDir(srcDir, dest string) error {
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("adding member %s: %w", rel, err)
		}
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer in.Close()
		if _, err := io.Copy(w, in); err != nil {
			return fmt.Errorf("writing member %s: %w", rel, err)
		}
		return nil
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		os.Remove(tmp)
		return walkErr
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing archive: %w", err)
	}
	return nil
}
