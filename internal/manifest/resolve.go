package manifest

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

// Resolve builds a slide entry from repository metadata and an optional override.
// The slug defaults to the lower-cased repository name. The result carries no status.
func Resolve(repo RepoRef, description string, o *Override) SlideResult {
	s := SlideResult{
		Slug:        strings.ToLower(repo.Name),
		Name:        repo.Name,
		Description: description,
		Repo:        repo,
	}
	if o == nil {
		return s
	}
	if o.Slug != nil {
		s.Slug = *o.Slug
	}
	if o.Name != nil {
		s.Name = *o.Name
	}
	if o.Description != nil {
		s.Description = *o.Description
	}
	return s
}

// ValidateSlug rejects slugs that cannot be used as a single output directory name.
func ValidateSlug(slug string) error {
	switch {
	case strings.TrimSpace(slug) == "":
		return invalidSlug(slug, "slug is empty")
	case slug == "." || strings.Contains(slug, ".."):
		return invalidSlug(slug, "slug must not reference a parent directory")
	case strings.ContainsAny(slug, `/\`):
		return invalidSlug(slug, "slug must not contain path separators")
	}
	return nil
}

func invalidSlug(slug, msg string) error {
	return errors.ValidationError(fmt.Sprintf("%s: %q", msg, slug)).
		WithKind(errors.KindInvalidSlug).
		WithContext("slug", slug).
		Build()
}

// CheckSlugs returns a SlugCollision error naming the first two repositories sharing a slug.
func CheckSlugs(slides []SlideResult) error {
	seen := make(map[string]string, len(slides))
	for _, s := range slides {
		if prev, ok := seen[s.Slug]; ok {
			return errors.ValidationError(
				fmt.Sprintf("slug %q is claimed by both %s and %s", s.Slug, prev, s.Repo.Name)).
				WithKind(errors.KindSlugCollision).
				Fatal().
				WithContext("slug", s.Slug).
				WithContext("repositories", []string{prev, s.Repo.Name}).
				Build()
		}
		seen[s.Slug] = s.Repo.Name
	}
	return nil
}
