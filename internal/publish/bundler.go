package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
)

// ModuleEnv tells the bundler where the module snapshot was written.
const ModuleEnv = "SLIDES_MODULE"

// Bundler runs the downstream site build between prepare and publish.
type Bundler interface {
	Bundle(ctx context.Context, modulePath string) error
}

// NoopBundler does nothing. Used when no bundle command is configured.
type NoopBundler struct{}

func (NoopBundler) Bundle(context.Context, string) error { return nil }

// CommandBundler runs an external command with SLIDES_MODULE set.
type CommandBundler struct {
	Command []string
	Dir     string
}

// NewBundler returns a CommandBundler for a non-empty command and a NoopBundler otherwise.
func NewBundler(command []string) Bundler {
	if len(command) == 0 {
		return NoopBundler{}
	}
	return &CommandBundler{Command: command}
}

func (b *CommandBundler) Bundle(ctx context.Context, modulePath string) error {
	if len(b.Command) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...) //nolint:gosec // command comes from configuration
	cmd.Dir = b.Dir
	cmd.Env = append(os.Environ(), ModuleEnv+"="+modulePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	command := strings.Join(b.Command, " ")
	slog.Info("Running bundler", logfields.Command(command), logfields.Path(modulePath))
	err := cmd.Run()

	if out := stdout.String(); out != "" {
		slog.Debug("bundler stdout", "output", out)
	}
	errStr := stderr.String()
	if errStr != "" {
		slog.Warn("bundler stderr", "error_output", errStr)
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryBuild, fmt.Sprintf("bundler %q failed", command)).
			WithContext("stderr", errStr).
			Build()
	}
	return nil
}
