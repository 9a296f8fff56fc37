package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/slidebuilder/cmd/slidebuilder/commands"
	ferrors "git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("slidebuilder"),
		kong.Description("Build and publish every slide deck repository of a GitHub owner."),
		kong.UsageOnError(),
	)
	err := parser.Run(&commands.Global{Logger: slog.Default()}, &cli)
	if err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		os.Exit(adapter.Report(os.Stderr, err))
	}
}
