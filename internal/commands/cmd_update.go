package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/erpsync/internal/desk"
)

type UpdateCmd struct {
	flags *Flags
	input payloadInput

	// flags
	jsonOutput bool
}

// NewUpdateCmd creates a new update command
func NewUpdateCmd(flags *Flags) *UpdateCmd {
	return &UpdateCmd{flags: flags}
}

// Register adds the update command to the application
func (cmd *UpdateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "update",
		Usage:     "Update a record on an endpoint",
		UsageText: "erpsync update [options] <endpoint> <id>",
		Description: `Puts a JSON object to <endpoint>/<id> and prints the updated record.

Examples:
  erpsync update /api/tax/rates 3 --set rate=0.21
  erpsync update /api/crm/leads 7 -f lead.json`,
		ShellComplete: EndpointCompleter(cmd.flags),
		Flags: []cli.Flag{
			cmd.input.reader.Flag(),
			&cli.StringSliceFlag{
				Name:        "set",
				Usage:       "payload field as field=value (repeatable)",
				Destination: &cmd.input.sets,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the updated record as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *UpdateCmd) run(ctx context.Context, c *cli.Command) error {
	endpoint, id := c.Args().Get(0), c.Args().Get(1)
	if endpoint == "" || id == "" {
		return fmt.Errorf("endpoint and id are required")
	}

	payload, err := cmd.input.read(endpoint)
	if errors.Is(err, errAborted) {
		return nil
	}
	if err != nil {
		return err
	}

	app, err := cmd.flags.OpenApp(ctx, desk.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := app.Actions.Update(ctx, endpoint, id, payload)
	return printMutation(ctx, c, app, rec, err, cmd.jsonOutput)
}
