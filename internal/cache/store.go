// Package cache manages the persistent directory holding working copies,
// per-repository override files and the persisted manifest.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

// ErrOverrideParseFailed matches override files that are not valid JSON objects
// of optional string fields.
var ErrOverrideParseFailed = errors.ValidationError("override file could not be parsed").
	WithKind(errors.KindOverrideParseFailed).
	Build()

const overrideSchema = `{
  "type": "object",
  "properties": {
    "slug":        {"type": ["string", "null"]},
    "name":        {"type": ["string", "null"]},
    "description": {"type": ["string", "null"]}
  }
}`

var overrideSchemaLoader = gojsonschema.NewStringLoader(overrideSchema)

// Store is the cache directory layout.
type Store struct {
	root         string
	overrideFile string
	manifestFile string
	distDir      string
}

// NewStore creates a store for the cache section and makes sure its root exists.
func NewStore(cfg config.CacheConfig) (*Store, error) {
	s := &Store{
		root:         cfg.Dir,
		overrideFile: cfg.OverrideFile,
		manifestFile: cfg.ManifestFile,
		distDir:      cfg.DistDir,
	}
	if s.root == "" {
		s.root = config.DefaultCacheDir
	}
	if s.overrideFile == "" {
		s.overrideFile = config.DefaultOverrideFile
	}
	if s.manifestFile == "" {
		s.manifestFile = config.DefaultManifestFile
	}
	if s.distDir == "" {
		s.distDir = config.DefaultDistDir
	}
	if err := s.EnsureRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// EnsureRoot creates the cache root if needed. Idempotent.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create cache root").
			WithContext("path", s.root).
			Build()
	}
	return nil
}

// WorkingCopyPath returns <root>/<lower(name)>.
func (s *Store) WorkingCopyPath(name string) string {
	return filepath.Join(s.root, strings.ToLower(name))
}

// HasWorkingCopy reports whether a working copy directory exists for name.
func (s *Store) HasWorkingCopy(name string) bool {
	fi, err := os.Stat(s.WorkingCopyPath(name))
	return err == nil && fi.IsDir()
}

// OutputDir returns the build output directory inside the working copy.
func (s *Store) OutputDir(name string) string {
	return filepath.Join(s.WorkingCopyPath(name), s.distDir)
}

// ManifestPath returns the location of the persisted manifest.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.root, s.manifestFile)
}

// ReadOverride loads the override file of a working copy. A missing file yields (nil, nil).
func (s *Store) ReadOverride(name string) (*manifest.Override, error) {
	path := filepath.Join(s.WorkingCopyPath(name), s.overrideFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read override file").
			WithContext("path", path).
			Build()
	}
	return parseOverride(path, data)
}

func parseOverride(path string, data []byte) (*manifest.Override, error) {
	fail := func(cause error) error {
		return errors.WrapError(cause, errors.CategoryValidation, "override file could not be parsed").
			WithKind(errors.KindOverrideParseFailed).
			WithContext("path", path).
			Build()
	}

	result, err := gojsonschema.Validate(overrideSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fail(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, fail(fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}

	var o manifest.Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fail(err)
	}
	return &o, nil
}

// WriteManifest persists the manifest atomically.
func (s *Store) WriteManifest(m *manifest.Manifest) error {
	if err := s.EnsureRoot(); err != nil {
		return err
	}
	data, err := m.ToJSON()
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode manifest").Build()
	}
	if err := WriteFileAtomic(s.ManifestPath(), append(data, '\n')); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").
			WithContext("path", s.ManifestPath()).
			Build()
	}
	return nil
}

// ReadManifest loads the persisted manifest, returning (nil, nil) when none exists.
func (s *Store) ReadManifest() (*manifest.Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read manifest").
			WithContext("path", s.ManifestPath()).
			Build()
	}
	m, err := manifest.FromJSON(bytes.TrimSpace(data))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "persisted manifest is corrupt").
			WithContext("path", s.ManifestPath()).
			Build()
	}
	return m, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
