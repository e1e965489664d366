package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
)

// EndpointCompleter returns a ShellCompleteFunc that suggests the endpoints
// named in the config: watch endpoints and endpoint rules without glob
// characters.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func EndpointCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if flags.Config == nil {
			return
		}

		w := cmd.Root().Writer
		for _, e := range knownEndpoints(flags) {
			_, _ = fmt.Fprintln(w, e)
		}
	}
}

func knownEndpoints(flags *Flags) []string {
	out := slices.Clone(flags.Config.Watch.Endpoints)
	for pattern := range flags.Config.Endpoints {
		if !strings.ContainsAny(pattern, "*?[{") {
			out = append(out, pattern)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
