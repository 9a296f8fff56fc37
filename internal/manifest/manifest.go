// Package manifest defines the slide manifest published to the site bundler.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

// Status is the build outcome of one repository.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Domain error kinds raised while assembling a manifest. Match with errors.Is.
var (
	ErrInvalidSlug   = errors.ValidationError("invalid slug").WithKind(errors.KindInvalidSlug).Build()
	ErrSlugCollision = errors.ValidationError("slug collision").WithKind(errors.KindSlugCollision).Fatal().Build()
)

// RepoRef points back at the source repository.
type RepoRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// BuildInfo records the outcome of the build.
type BuildInfo struct {
	Status Status `json:"status"`
}

// SlideResult is one manifest entry.
type SlideResult struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Repo        RepoRef   `json:"repo"`
	Build       BuildInfo `json:"build"`
}

// Succeeded reports whether the slide has publishable output.
func (s SlideResult) Succeeded() bool { return s.Build.Status == StatusSuccess }

// Override holds the optional fields a repository may set in its override file.
// Nil fields fall back to the repository metadata.
type Override struct {
	Slug        *string `json:"slug,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Manifest is the ordered list of slide results for one owner.
type Manifest struct {
	Owner     string        `json:"owner"`
	Generated int64         `json:"generated"` // unix epoch milliseconds
	Slides    []SlideResult `json:"slides"`
}

// New builds a manifest stamped with the given time.
func New(owner string, generated time.Time, slides []SlideResult) *Manifest {
	if slides == nil {
		slides = []SlideResult{}
	}
	return &Manifest{Owner: owner, Generated: generated.UnixMilli(), Slides: slides}
}

// GeneratedAt returns the generation timestamp.
func (m *Manifest) GeneratedAt() time.Time {
	return time.UnixMilli(m.Generated)
}

// Counts returns the number of successful and failed slides.
func (m *Manifest) Counts() (success, failure int) {
	for _, s := range m.Slides {
		if s.Succeeded() {
			success++
		} else {
			failure++
		}
	}
	return success, failure
}

// Successful returns the slides whose build succeeded, in manifest order.
func (m *Manifest) Successful() []SlideResult {
	out := make([]SlideResult, 0, len(m.Slides))
	for _, s := range m.Slides {
		if s.Succeeded() {
			out = append(out, s)
		}
	}
	return out
}

// ToJSON renders the manifest indented with two spaces.
func (m *Manifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON decodes a manifest.
func FromJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Slides == nil {
		m.Slides = []SlideResult{}
	}
	return &m, nil
}

// Hash fingerprints the slide list, ignoring the generation time.
func (m *Manifest) Hash() (string, error) {
	data, err := json.Marshal(struct {
		Owner  string        `json:"owner"`
		Slides []SlideResult `json:"slides"`
	}{m.Owner, m.Slides})
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
