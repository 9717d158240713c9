package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrOutsideRoot is returned for paths that escape the root.
	ErrOutsideRoot = errors.New("safeio: path outside root")
	errNoFS        = errors.New("safeio: filesystem not configured")
)

// SafeFS resolves paths relative to a fixed root and refuses any path that
// escapes it, including through symlinks.
type SafeFS struct {
	absRoot string // absolute root with symlinks resolved
}

// NewSafeFS locks all future operations to the given root directory.
// The root path is resolved to an absolute, symlink-free directory.
func NewSafeFS(root string) (*SafeFS, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is not a directory", abs)
	}
	return &SafeFS{absRoot: abs}, nil
}

// Root returns the absolute root directory bound to this SafeFS.
func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.absRoot
}

// SafeReadFile reads a file relative to the root.
func (s *SafeFS) SafeReadFile(userPath string) ([]byte, error) {
	p, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("safeio: %s is a directory", userPath)
	}
	return os.ReadFile(p)
}

// SafeStat returns metadata for a file or directory under the root.
func (s *SafeFS) SafeStat(userPath string) (fs.FileInfo, error) {
	p, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// WriteFileAtomic replaces the file at userPath with data. The content is
// written to a temporary file in the target directory and renamed into
// place, so readers observe either the old or the new file. Missing parent
// directories are created.
func (s *SafeFS) WriteFileAtomic(userPath string, data []byte, perm fs.FileMode) (err error) {
	rel, err := s.relative(userPath)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("safeio: cannot write to the root directory")
	}
	dir := filepath.Join(s.absRoot, filepath.Dir(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if !hasPathPrefix(dir, s.absRoot) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(rel)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, filepath.Base(rel)))
}

// relative cleans userPath into a root-relative path without resolving
// symlinks. Absolute paths must lie under the root.
func (s *SafeFS) relative(userPath string) (string, error) {
	if s == nil {
		return "", errNoFS
	}
	if userPath == "" {
		return "", errors.New("safeio: empty path")
	}
	clean := filepath.Clean(userPath)
	if isAbs(clean) {
		if !hasPathPrefix(clean, s.absRoot) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, clean)
		}
		rel, err := filepath.Rel(s.absRoot, clean)
		if err != nil {
			return "", err
		}
		clean = rel
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, userPath)
	}
	return clean, nil
}

func (s *SafeFS) resolve(userPath string) (string, error) {
	rel, err := s.relative(userPath)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(s.absRoot, rel))
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, s.absRoot) {
		return "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideRoot, userPath, resolved)
	}
	return resolved, nil
}

func isAbs(p string) bool {
	return filepath.IsAbs(p) || (runtime.GOOS == "windows" && filepath.VolumeName(p) != "")
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if len(root) == 0 || path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path+sep, root)
}
