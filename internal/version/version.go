// Package version carries build metadata injected with -ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/slidebuilder/internal/version.Version=v1.0.0".
package version

import "fmt"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("slidebuilder %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
