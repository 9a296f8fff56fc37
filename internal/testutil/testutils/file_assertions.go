package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FileAssertions checks file system state below a base directory.
type FileAssertions struct {
	t       *testing.T
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t *testing.T, baseDir string) *FileAssertions {
	return &FileAssertions{t: t, baseDir: baseDir}
}

// AssertFileContains fails unless the file exists and contains expected.
func (fa *FileAssertions) AssertFileContains(relativePath, expected string) *FileAssertions {
	fa.t.Helper()
	data, err := os.ReadFile(filepath.Join(fa.baseDir, relativePath))
	if err != nil {
		fa.t.Errorf("read %s: %v", relativePath, err)
		return fa
	}
	if !strings.Contains(string(data), expected) {
		fa.t.Errorf("%s does not contain %q", relativePath, expected)
	}
	return fa
}

// AssertMissing fails if the path exists.
func (fa *FileAssertions) AssertMissing(relativePath string) *FileAssertions {
	fa.t.Helper()
	if _, err := os.Stat(filepath.Join(fa.baseDir, relativePath)); err == nil {
		fa.t.Errorf("expected %s to be absent", relativePath)
	}
	return fa
}

// AssertEntries fails unless the directory holds exactly the named entries.
func (fa *FileAssertions) AssertEntries(relativePath string, names ...string) *FileAssertions {
	fa.t.Helper()
	entries, err := os.ReadDir(filepath.Join(fa.baseDir, relativePath))
	if err != nil {
		fa.t.Errorf("read dir %s: %v", relativePath, err)
		return fa
	}
	got := make(map[string]bool, len(entries))
	for _, e := range entries {
		got[e.Name()] = true
	}
	for _, n := range names {
		if !got[n] {
			fa.t.Errorf("expected %s/%s to exist", relativePath, n)
		}
		delete(got, n)
	}
	for extra := range got {
		fa.t.Errorf("unexpected entry %s/%s", relativePath, extra)
	}
	return fa
}
