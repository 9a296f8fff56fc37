// Package forge lists the repositories owned by an account on a code hosting service.
package forge

import (
	"context"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

// ErrSourceUnavailable matches any failure to obtain the repository listing.
var ErrSourceUnavailable = errors.ForgeError("repository source unavailable").
	WithKind(errors.KindSourceUnavailable).
	Fatal().
	Build()

// Repository is the descriptor returned by a Source.
type Repository struct {
	Name          string `json:"name"`
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Archived      bool   `json:"archived"`
	Fork          bool   `json:"fork"`
}

// Source enumerates repositories. Implementations preserve the listing order.
type Source interface {
	ListRepositories(ctx context.Context, owner string, isOrg bool) ([]Repository, error)
}

func sourceUnavailable(owner string, cause error) error {
	return errors.WrapError(cause, errors.CategoryForge, "repository source unavailable").
		WithKind(errors.KindSourceUnavailable).
		Fatal().
		WithContext("owner", owner).
		Build()
}
