package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/query"
	"github.com/colonyops/erpsync/internal/core/retry"
	"github.com/colonyops/erpsync/internal/desk"
	"github.com/colonyops/erpsync/pkg/iojson"
)

const (
	// maxParallelGets bounds concurrent reads when several endpoints are given.
	maxParallelGets = 4
	// maxPages stops --all on endpoints that never return a short page.
	maxPages = 500
)

type GetCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	single     bool
	all        bool
	page       int
	pageSize   int
	search     string
	orderBy    string
	orderDir   string
	filters    []string
}

// NewGetCmd creates a new get command
func NewGetCmd(flags *Flags) *GetCmd {
	return &GetCmd{flags: flags}
}

// Register adds the get command to the application
func (cmd *GetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "get",
		Usage:     "Fetch one or more endpoints",
		UsageText: "erpsync get [options] <endpoint>...",
		Description: `Reads each endpoint once, retrying failures with the configured backoff,
and prints the records as a table.

Several endpoints are fetched in parallel. Use --json for one JSON object per
record, or --single for endpoints that return one object.

Examples:
  erpsync get /api/procurement/vendors
  erpsync get --search acme --order-by name /api/crm/leads
  erpsync get --filter status=open --page 2 /api/sales/orders`,
		ShellComplete: EndpointCompleter(cmd.flags),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "single",
				Usage:       "treat endpoints as single-object resources",
				Destination: &cmd.single,
			},
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "follow pages until a short page is returned",
				Destination: &cmd.all,
			},
			&cli.IntFlag{
				Name:        "page",
				Usage:       "page number to request",
				Destination: &cmd.page,
			},
			&cli.IntFlag{
				Name:        "page-size",
				Usage:       "records per page",
				Destination: &cmd.pageSize,
			},
			&cli.StringFlag{
				Name:        "search",
				Aliases:     []string{"s"},
				Usage:       "server-side search term",
				Destination: &cmd.search,
			},
			&cli.StringFlag{
				Name:        "order-by",
				Usage:       "field to sort by",
				Destination: &cmd.orderBy,
			},
			&cli.StringFlag{
				Name:        "order-dir",
				Usage:       "sort direction (asc, desc)",
				Destination: &cmd.orderDir,
			},
			&cli.StringSliceFlag{
				Name:        "filter",
				Aliases:     []string{"F"},
				Usage:       "server-side filter as field=value (repeatable)",
				Destination: &cmd.filters,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *GetCmd) run(ctx context.Context, c *cli.Command) error {
	endpoints := c.Args().Slice()
	if len(endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}

	params, err := cmd.params()
	if err != nil {
		return err
	}

	app, err := cmd.flags.OpenApp(ctx, desk.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	keys := make([]string, len(endpoints))
	for i, e := range endpoints {
		keys[i] = query.WithParams(e, params)
		if cmd.single {
			app.Cache.Declare(keys[i], cache.KindSingle)
		}
	}

	policy := cmd.flags.Config.RetryPolicy()
	read := func(ctx context.Context, key string) (cache.Snapshot, error) {
		return readOnce(ctx, app.Cache, key, policy)
	}
	if cmd.all {
		read = func(ctx context.Context, key string) (cache.Snapshot, error) {
			return readPages(ctx, app.Cache, key, cmd.pageSize, policy)
		}
	}

	snaps, err := fetchAll(ctx, keys, read)
	if err != nil {
		if cmd.jsonOutput {
			_ = iojson.WriteError(err.Error(), nil)
		}
		return err
	}

	out := c.Root().Writer
	idField := app.Cache.IdentityField()
	for i, snap := range snaps {
		if cmd.jsonOutput {
			if err := writeRecordLines(out, snap.Records()); err != nil {
				return err
			}
			continue
		}

		if len(snaps) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			_, _ = fmt.Fprintf(out, "== %s (%d) ==\n", keys[i], snap.Len())
		}
		writeTable(out, snap.Records(), idField)
	}

	return nil
}

// params maps the query flags onto request parameters.
func (cmd *GetCmd) params() (url.Values, error) {
	v := url.Values{}
	if cmd.all && cmd.page > 0 {
		return nil, fmt.Errorf("--page and --all cannot be combined")
	}
	if cmd.page > 0 {
		v.Set(query.ParamPage, strconv.Itoa(cmd.page))
	}
	if cmd.pageSize > 0 && !cmd.all {
		v.Set(query.ParamPageSize, strconv.Itoa(cmd.pageSize))
	}
	v.Set(query.ParamSearch, cmd.search)
	v.Set(query.ParamOrderBy, cmd.orderBy)

	switch strings.ToLower(cmd.orderDir) {
	case "":
	case query.SortAsc, query.SortDesc:
		v.Set(query.ParamOrderDir, strings.ToLower(cmd.orderDir))
	default:
		return nil, fmt.Errorf("invalid --order-dir %q (expected asc or desc)", cmd.orderDir)
	}

	for _, f := range cmd.filters {
		field, value, ok := strings.Cut(f, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid --filter %q (expected field=value)", f)
		}
		v.Add(field, value)
	}
	return v, nil
}

// fetchAll runs read for every key concurrently. The first failure cancels
// the rest.
func fetchAll(ctx context.Context, keys []string, read func(context.Context, string) (cache.Snapshot, error)) ([]cache.Snapshot, error) {
	snaps := make([]cache.Snapshot, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGets)
	for i, key := range keys {
		g.Go(func() error {
			snap, err := read(gctx, key)
			if err != nil {
				return fmt.Errorf("get %s: %w", key, err)
			}
			snaps[i] = snap
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func readOnce(ctx context.Context, c *cache.Cache, key string, policy retry.Policy) (cache.Snapshot, error) {
	var snap cache.Snapshot
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		snap, err = c.Fetch(ctx, key)
		return stopOnShape(err)
	})
	return snap, err
}

// stopOnShape keeps retry.Do from re-reading a payload of the wrong kind.
func stopOnShape(err error) error {
	if errors.Is(err, cache.ErrShape) {
		return retry.Permanent(err)
	}
	return err
}

// readPages walks key with a Pager and returns every record as one list.
func readPages(ctx context.Context, c *cache.Cache, key string, size int, policy retry.Policy) (cache.Snapshot, error) {
	pager := query.NewPager(c, key, size)

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return stopOnShape(pager.Load(ctx, 1, false))
	})
	if err != nil {
		return cache.Snapshot{}, err
	}

	for pages := 1; pager.HasMore() && pages < maxPages; pages++ {
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return stopOnShape(pager.Next(ctx))
		})
		if err != nil {
			return cache.Snapshot{}, fmt.Errorf("page %d: %w", pager.State().Page+1, err)
		}
	}

	return cache.Snapshot{Kind: cache.KindList, Items: pager.State().Items}, nil
}
