package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/workspace"
)

// ErrBuildFailed matches any install or build failure.
var ErrBuildFailed = errors.BuildError("build failed").WithKind(errors.KindBuildFailed).Build()

// BaseEnv is the variable telling the slide toolchain its public base path.
const BaseEnv = "SLIDE_BASE"

const (
	stageInstall = "install"
	stageBuild   = "build"

	stderrTailLines = 20
	waitDelay       = 5 * time.Second
)

// Runner executes the configured install and build commands.
type Runner struct {
	install []string
	build   []string
}

// NewRunner creates a runner from the build section.
func NewRunner(cfg config.BuildConfig) *Runner {
	return &Runner{install: cfg.InstallCommand, build: cfg.BuildCommand}
}

// Build installs dependencies and builds the working copy held by scope.
// The build step sees SLIDE_BASE=/<slug>/. In devMode nothing runs.
func (r *Runner) Build(ctx context.Context, scope *workspace.Scope, repo, slug string, devMode bool) error {
	if devMode {
		slog.Info("Build skipped in development mode", logfields.Repository(repo), logfields.Slug(slug))
		return nil
	}
	start := time.Now()
	if err := r.run(ctx, scope, repo, stageInstall, r.install); err != nil {
		return err
	}
	if err := r.run(ctx, scope, repo, stageBuild, r.build, BaseEnv+"=/"+slug+"/"); err != nil {
		return err
	}
	slog.Info("Repository built", logfields.Repository(repo), logfields.Slug(slug), logfields.Duration(time.Since(start)))
	return nil
}

func (r *Runner) run(ctx context.Context, scope *workspace.Scope, repo, stage string, argv []string, env ...string) error {
	cmd, err := scope.Command(ctx, argv, env...)
	if err != nil {
		return buildFailed(repo, stage, err, "")
	}
	stdout := newLogWriter(repo, stage, "stdout", 0)
	stderr := newLogWriter(repo, stage, "stderr", stderrTailLines)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	slog.Debug("Running command", logfields.Repository(repo), logfields.Stage(stage), logfields.Command(strings.Join(argv, " ")))
	err = cmd.Run()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("%s timed out: %w", stage, ctxErr)
		} else {
			err = fmt.Errorf("%s interrupted: %w", stage, ctxErr)
		}
	}
	return buildFailed(repo, stage, err, stderr.Tail())
}

func buildFailed(repo, stage string, cause error, tail string) error {
	b := errors.WrapError(cause, errors.CategoryBuild, "build failed").
		WithKind(errors.KindBuildFailed).
		WithContext("repository", repo).
		WithContext("stage", stage)
	if tail != "" {
		b = b.WithContext("stderr_tail", tail)
	}
	return b.Build()
}
