package commands

import (
	"os"
	"text/tabwriter"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	All   bool   `short:"a" help:"Include ignored repositories"`
	Owner string `help:"Repository owner (overrides owner)"`
}

func (l *ListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	RunFlags{Owner: l.Owner}.Apply(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	app, err := NewApp(cfg, AppDeps{})
	if err != nil {
		return err
	}
	defer app.Close()

	plan, err := app.Plan(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = tw.Write([]byte("NAME\tSTATUS\tURL\n"))
	for _, r := range plan.Included {
		_, _ = tw.Write([]byte(r.Name + "\tincluded\t" + r.HTMLURL + "\n"))
	}
	if l.All {
		for _, r := range plan.Ignored {
			_, _ = tw.Write([]byte(r.Repository.Name + "\t" + r.Reason + "\t" + r.Repository.HTMLURL + "\n"))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printf("%d included, %d ignored\n", len(plan.Included), len(plan.Ignored))
	return nil
}
