package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"schemaextract/internal/safeio"
)

// DescriptorFile is the module descriptor looked up at the module root.
const DescriptorFile = "ftl.toml"

// ConfigError reports a missing or malformed module descriptor. It is fatal:
// no analysis runs without a module name.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %v", e.Path, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

var ErrNoModule = errors.New(`missing required "module" key`)

// Descriptor is the subset of ftl.toml this tool reads. Unknown keys such as
// language, build or watch are ignored.
type Descriptor struct {
	Module string `toml:"module"`
	// DeployDir is relative to the module root.
	DeployDir string `toml:"deploy-dir"`
	// Schema is the schema file name relative to DeployDir.
	Schema string `toml:"schema"`
}

// SchemaPath returns the output path relative to the module root.
func (d Descriptor) SchemaPath() string {
	return filepath.Join(d.DeployDir, d.Schema)
}

// LoadDescriptor reads ftl.toml from the root of fsys and applies defaults.
func LoadDescriptor(fsys *safeio.SafeFS) (Descriptor, error) {
	path := filepath.Join(fsys.Root(), DescriptorFile)
	raw, err := fsys.SafeReadFile(DescriptorFile)
	if err != nil {
		return Descriptor{}, &ConfigError{Path: path, Err: err}
	}
	var d Descriptor
	if _, err := toml.Decode(string(raw), &d); err != nil {
		return Descriptor{}, &ConfigError{Path: path, Err: err}
	}
	d.Module = strings.TrimSpace(d.Module)
	if d.Module == "" {
		return Descriptor{}, &ConfigError{Path: path, Err: ErrNoModule}
	}
	if d.DeployDir == "" {
		d.DeployDir = ".ftl"
	}
	if d.Schema == "" {
		d.Schema = "schema.pb"
	}
	for _, p := range []string{d.DeployDir, d.SchemaPath()} {
		clean := filepath.Clean(p)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return Descriptor{}, &ConfigError{Path: path, Err: fmt.Errorf("%q is not beneath the module root", p)}
		}
	}
	return d, nil
}
