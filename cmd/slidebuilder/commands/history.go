package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/slidebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/slidebuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	RunID string `name:"run" help:"Show per-repository results of one run"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		if _, statErr := os.Stat(cfg.History.Path); statErr != nil {
			return errors.ConfigError("run history is disabled (set history.enabled: true)").Build()
		}
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "failed to open run history").
			WithContext("path", cfg.History.Path).
			Build()
	}
	defer func() { _ = store.Close() }()

	return h.render(context.Background(), store, os.Stdout)
}

func (h *HistoryCmd) render(ctx context.Context, store *history.SQLiteStore, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if h.RunID != "" {
		results, err := store.Results(ctx, h.RunID)
		if err != nil {
			return errors.WrapError(err, errors.CategoryHistory, "failed to read run").Build()
		}
		fmt.Fprintln(tw, "REPOSITORY\tSLUG\tSTATE\tDURATION\tERROR")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Repository, r.Slug, r.State, r.Duration.Round(time.Millisecond), r.Error)
		}
		return tw.Flush()
	}

	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "failed to read run history").Build()
	}
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tOUTCOME\tSUCCESS\tFAILURE\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			r.Outcome, r.Success, r.Failure, r.Error)
	}
	return tw.Flush()
}
