package orchestrator

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/slidebuilder/internal/forge"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

// IgnoredRepository is a listed repository the filter rejected.
type IgnoredRepository struct {
	Repository forge.Repository
	Reason     string
}

// Plan is the filtered listing of one run.
type Plan struct {
	Included []forge.Repository
	Ignored  []IgnoredRepository
}

// Plan lists the owner's repositories and applies the ignore filter.
// Listing order is preserved. A listing failure is returned unchanged.
func (o *Orchestrator) Plan(ctx context.Context, owner string, isOrg bool) (Plan, error) {
	repos, err := o.source.ListRepositories(ctx, owner, isOrg)
	if err != nil {
		return Plan{}, err
	}
	var p Plan
	for _, r := range repos {
		ok, reason := o.filter.Include(r.Name)
		if !ok {
			slog.Debug("Repository ignored", logfields.Repository(r.Name), slog.String("reason", reason))
			p.Ignored = append(p.Ignored, IgnoredRepository{Repository: r, Reason: reason})
			continue
		}
		p.Included = append(p.Included, r)
	}
	return p, nil
}
