package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/slidebuilder/internal/cache"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

// ErrPublishFailed matches errors raised while populating the output tree.
var ErrPublishFailed = errors.FileSystemError("publish failed").WithKind(errors.KindPublishFailed).Build()

// Report lists what a publish pass did, by slug.
type Report struct {
	Published []string
	Skipped   []string
	Missing   []string
}

// Publisher copies successful build outputs to <outputRoot>/<slug>.
type Publisher struct {
	store      *cache.Store
	outputRoot string
}

// NewPublisher returns a publisher reading build outputs from store.
func NewPublisher(store *cache.Store, outputRoot string) *Publisher {
	return &Publisher{store: store, outputRoot: outputRoot}
}

// OutputRoot returns the publish destination.
func (p *Publisher) OutputRoot() string { return p.outputRoot }

// Publish clears and repopulates the destination of every successful slide.
// Failed slides are skipped. Successful slides without a build output are
// reported together after the others have been copied.
func (p *Publisher) Publish(ctx context.Context, m *manifest.Manifest) (Report, error) {
	var report Report
	if m == nil {
		return report, errors.ValidationError("no manifest to publish").WithKind(errors.KindPublishFailed).Build()
	}
	if err := manifest.CheckSlugs(m.Slides); err != nil {
		return report, err
	}
	if err := os.MkdirAll(p.outputRoot, 0o750); err != nil {
		return report, errors.WrapError(err, errors.CategoryFileSystem, "failed to create output root").
			WithKind(errors.KindPublishFailed).
			WithContext("path", p.outputRoot).
			Build()
	}

	for _, slide := range m.Slides {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !slide.Succeeded() {
			slog.Debug("Skipping failed slide", logfields.Slug(slide.Slug), logfields.Repository(slide.Repo.Name))
			report.Skipped = append(report.Skipped, slide.Slug)
			continue
		}
		if err := manifest.ValidateSlug(slide.Slug); err != nil {
			return report, err
		}

		src := p.store.OutputDir(slide.Repo.Name)
		if fi, err := os.Stat(src); err != nil || !fi.IsDir() {
			slog.Warn("Build output missing", logfields.Slug(slide.Slug), logfields.Path(src))
			report.Missing = append(report.Missing, slide.Slug)
			continue
		}

		dst := filepath.Join(p.outputRoot, slide.Slug)
		if err := os.RemoveAll(dst); err != nil {
			return report, publishFailed(err, slide.Slug, dst)
		}
		if err := CopyDir(src, dst); err != nil {
			return report, publishFailed(err, slide.Slug, dst)
		}
		slog.Info("Published slide", logfields.Slug(slide.Slug), logfields.Path(dst))
		report.Published = append(report.Published, slide.Slug)
	}

	if len(report.Missing) > 0 {
		return report, errors.FileSystemError(fmt.Sprintf("build output missing for %s", strings.Join(report.Missing, ", "))).
			WithKind(errors.KindPublishFailed).
			WithContext("slugs", report.Missing).
			Build()
	}
	return report, nil
}

func publishFailed(cause error, slug, dst string) error {
	return errors.WrapError(cause, errors.CategoryFileSystem, "failed to publish slide").
		WithKind(errors.KindPublishFailed).
		WithContext("slug", slug).
		WithContext("path", dst).
		Build()
}
