package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/erpsync/internal/core/styles"
	"github.com/colonyops/erpsync/internal/desk"
	"github.com/colonyops/erpsync/internal/printer"
)

type DeleteCmd struct {
	flags *Flags

	// flags
	yes bool
}

// NewDeleteCmd creates a new delete command
func NewDeleteCmd(flags *Flags) *DeleteCmd {
	return &DeleteCmd{flags: flags}
}

// Register adds the delete command to the application
func (cmd *DeleteCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a record from an endpoint",
		UsageText: "erpsync delete [--yes] <endpoint> <id>",
		Description: `Deletes <endpoint>/<id> after confirmation.

Without a terminal the command refuses to run unless --yes is given.`,
		ShellComplete: EndpointCompleter(cmd.flags),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "skip the confirmation prompt",
				Destination: &cmd.yes,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *DeleteCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	endpoint, id := c.Args().Get(0), c.Args().Get(1)
	if endpoint == "" || id == "" {
		return fmt.Errorf("endpoint and id are required")
	}

	if !cmd.yes {
		if !stdinIsTerminal() {
			return fmt.Errorf("refusing to delete without --yes when stdin is not a terminal")
		}

		var confirmed bool
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %s #%s?", endpoint, id)).
					Description("This cannot be undone from the command line.").
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed),
			),
		).WithTheme(styles.FormTheme()).Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("form: %w", err)
		}
		if !confirmed {
			p.Infof("Delete cancelled")
			return nil
		}
	}

	app, err := cmd.flags.OpenApp(ctx, desk.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	_, err = app.Actions.Remove(ctx, endpoint, id)
	reportQueue(p, app.Queue)
	if err != nil {
		return cli.Exit("", 1)
	}
	return nil
}
