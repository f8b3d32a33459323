package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/cli/config"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/m-mizutani/msipv6/pkg/infra/planfile"
	"github.com/m-mizutani/msipv6/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdDownload(g *globals) *cli.Command {
	var dlCfg config.Download

	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Execute a plan file",
		Flags:   dlCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			g.values.Apply(c, &g.network, &dlCfg, &g.repo)
			if err := dlCfg.Validate(); err != nil {
				return err
			}

			plan, err := planfile.Load(dlCfg.Plan)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			transport := g.network.Transport(dlCfg.TimeoutDuration(), &g.repo)
			summary, err := usecase.NewExecutor(transport).Execute(ctx, plan, dlCfg.Options())
			if err != nil {
				return err
			}

			printSummary(g.out, summary)

			if summary.Failed > 0 && !dlCfg.AllowFailures {
				return goerr.New("some files failed to download",
					goerr.V("failed", summary.Failed),
					goerr.V("total", summary.Total),
					goerr.T(types.ErrTagDownloadFailed))
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, s *model.Summary) {
	label := color.New(color.Bold)
	counts := []struct {
		name  string
		value uint64
		c     *color.Color
	}{
		{"total", s.Total, color.New(color.Reset)},
		{"success", s.Success, color.New(color.FgGreen)},
		{"skipped", s.Skipped, color.New(color.FgYellow)},
		{"failed", s.Failed, color.New(color.FgRed)},
	}
	for _, cnt := range counts {
		_, _ = label.Fprintf(w, "%-8s", cnt.name+":")
		if cnt.value == 0 && cnt.name == "failed" {
			_, _ = fmt.Fprintf(w, " %d\n", cnt.value)
			continue
		}
		_, _ = cnt.c.Fprintf(w, " %d\n", cnt.value)
	}
}
