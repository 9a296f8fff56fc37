package forge

import "context"

// StaticSource serves a fixed listing, e.g. local mirrors or tests.
type StaticSource struct {
	Repositories []Repository
	Err          error
}

// ListRepositories returns a copy of the configured listing, or Err wrapped as ErrSourceUnavailable.
func (s *StaticSource) ListRepositories(_ context.Context, owner string, _ bool) ([]Repository, error) {
	if s.Err != nil {
		return nil, sourceUnavailable(owner, s.Err)
	}
	out := make([]Repository, len(s.Repositories))
	copy(out, s.Repositories)
	return out, nil
}
