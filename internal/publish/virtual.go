package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

const (
	// VirtualID is the identifier bundler code imports.
	VirtualID = "virtual:slides"
	// ResolvedVirtualID is what ResolveID hands back for VirtualID.
	ResolvedVirtualID = "\x00" + VirtualID
)

// Module exposes the latest manifest as the virtual module.
type Module struct {
	mu       sync.RWMutex
	manifest *manifest.Manifest
}

// NewModule returns a module serving m, which may be nil until the first run completes.
func NewModule(m *manifest.Manifest) *Module {
	return &Module{manifest: m}
}

// Set replaces the served manifest.
func (v *Module) Set(m *manifest.Manifest) {
	v.mu.Lock()
	v.manifest = m
	v.mu.Unlock()
}

// Manifest returns the served manifest.
func (v *Module) Manifest() *manifest.Manifest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.manifest
}

// ResolveID claims id only when it is exactly VirtualID.
func (v *Module) ResolveID(id string) (string, bool) {
	if id != VirtualID {
		return "", false
	}
	return ResolvedVirtualID, true
}

// Load returns the JSON snapshot for a resolved id. ok is false for ids this module does not own.
func (v *Module) Load(resolved string) (content []byte, ok bool, err error) {
	if resolved != ResolvedVirtualID {
		return nil, false, nil
	}
	m := v.Manifest()
	if m == nil {
		return nil, true, fmt.Errorf("no manifest available yet")
	}
	data, err := m.ToJSON()
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// WriteModule writes the snapshot to path for bundlers that read it from disk.
func (v *Module) WriteModule(path string) error {
	data, _, err := v.Load(ResolvedVirtualID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create module directory: %w", err)
	}
	return cache.WriteFileAtomic(path, append(data, '\n'))
}
