package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/cli/config"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/infra/planfile"
	"github.com/m-mizutani/msipv6/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdPlan(g *globals) *cli.Command {
	var planCfg config.Plan

	return &cli.Command{
		Name:  "plan",
		Usage: "List a remote repository and write a plan file",
		Flags: planCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			g.values.Apply(c, &g.network, nil, &g.repo)

			transport := g.network.Transport(model.DefaultTimeout, &g.repo)
			planner := usecase.NewPlanner(g.repo.Client(transport.Client()), planfile.New())

			output, err := planner.Generate(ctx, planCfg.Request(g.repo.Revision))
			if err != nil {
				return goerr.Wrap(err, "failed to generate plan")
			}

			ctxlog.From(ctx).Info("Plan written", "path", output)
			_, _ = fmt.Fprintln(g.out, output)
			return nil
		},
	}
}
