package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/desk"
	"github.com/colonyops/erpsync/internal/printer"
)

type CreateCmd struct {
	flags *Flags
	input payloadInput

	// flags
	jsonOutput bool
}

// NewCreateCmd creates a new create command
func NewCreateCmd(flags *Flags) *CreateCmd {
	return &CreateCmd{flags: flags}
}

// Register adds the create command to the application
func (cmd *CreateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "create",
		Usage:     "Create a record on an endpoint",
		UsageText: "erpsync create [options] <endpoint>",
		Description: `Posts a JSON object to the endpoint and prints the created record.

The payload is read from --file, from --set pairs, from stdin when piped, or
from an interactive form.

Examples:
  erpsync create /api/procurement/vendors --set name=Acme --set rating=4
  echo '{"name":"Acme"}' | erpsync create /api/procurement/vendors`,
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
				Usage:       "print the created record as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *CreateCmd) run(ctx context.Context, c *cli.Command) error {
	endpoint := c.Args().First()
	if endpoint == "" {
		return fmt.Errorf("endpoint is required")
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

	rec, err := app.Actions.Create(ctx, endpoint, payload)
	return printMutation(ctx, c, app, rec, err, cmd.jsonOutput)
}

// printMutation reports the queue and, on success, the resulting record.
// Failures were already reported through the queue, so the exit is silent.
func printMutation(ctx context.Context, c *cli.Command, app *desk.App, rec cache.Record, err error, jsonOutput bool) error {
	p := printer.Ctx(ctx)
	reportQueue(p, app.Queue)
	if err != nil {
		return cli.Exit("", 1)
	}

	if rec == nil {
		return nil
	}
	out := c.Root().Writer
	if jsonOutput {
		return writeRecordLines(out, []cache.Record{rec})
	}
	writeTable(out, []cache.Record{rec}, app.Cache.IdentityField())
	return nil
}
