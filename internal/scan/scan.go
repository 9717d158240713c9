package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnoreDirs are never descended into.
var DefaultIgnoreDirs = []string{".ftl", ".git", ".hg", ".svn", ".venv", "venv", "__pycache__", "node_modules", "build", "dist"}

// Options controls a walk.
type Options struct {
	// IgnoreDirs lists directory base names to skip. Hidden directories are
	// always skipped.
	IgnoreDirs []string
	// Extensions restricts reported files, compared case-insensitively
	// (e.g. ".py"). Empty reports every file.
	Extensions []string
}

// FileVisit carries per-entry metadata to user callbacks.
type FileVisit struct {
	// Root-relative path using forward slashes (e.g., "pkg/models.py").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// True when the entry is a directory.
	IsDir bool
	// Lowercased extension (e.g., ".py"); empty for dirs or no-ext files.
	Ext string
	// File size in bytes; 0 for dirs or when stat fails.
	Size int64
}

// VisitFunc is invoked for every visited entry that passes the filters.
type VisitFunc func(f FileVisit)

// Walk visits root recursively. Unreadable entries are skipped.
func Walk(root string, opts Options, cb VisitFunc) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignore[d] = struct{}{}
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && path != root {
			base := d.Name()
			if _, skip := ignore[base]; skip || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		fv := FileVisit{
			Path:    filepath.ToSlash(rel),
			AbsPath: path,
			IsDir:   d.IsDir(),
		}
		if !fv.IsDir {
			fv.Ext = strings.ToLower(filepath.Ext(rel))
			if len(exts) > 0 {
				if _, ok := exts[fv.Ext]; !ok {
					return nil
				}
			}
			if info, err := d.Info(); err == nil {
				fv.Size = info.Size()
			}
		}
		if cb != nil {
			cb(fv)
		}
		return nil
	})
}

// SourceFile is a discovered source file.
type SourceFile struct {
	// Path is root-relative with forward slashes.
	Path string
	Size int64
}

// SourceFiles returns every Python source file below root, sorted by path.
// A nil opts.IgnoreDirs uses DefaultIgnoreDirs.
func SourceFiles(root string, opts Options) ([]SourceFile, error) {
	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = DefaultIgnoreDirs
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".py"}
	}
	var out []SourceFile
	err := Walk(root, opts, func(fv FileVisit) {
		if fv.IsDir {
			return
		}
		out = append(out, SourceFile{Path: fv.Path, Size: fv.Size})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Paths returns the paths of files in order.
func Paths(files []SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
