package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/msipv6/pkg/cli/config"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// globals are the flags shared by every subcommand
type globals struct {
	logger  config.Logger
	network config.Network
	repo    config.Repository
	profile config.Profile
	sentry  config.Sentry

	values *config.ProfileValues
	out    io.Writer
}

func (g *globals) flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, g.logger.Flags()...)
	flags = append(flags, g.network.Flags()...)
	flags = append(flags, g.repo.Flags()...)
	flags = append(flags, g.profile.Flags()...)
	flags = append(flags, g.sentry.Flags()...)
	return flags
}

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	g := &globals{out: out}
	var logger *slog.Logger

	app := &cli.Command{
		Name:    types.AppName,
		Usage:   "Plan and download model/dataset repositories, optionally forcing IPv6",
		Version: types.Version,
		Flags:   g.flags(),
		Writer:  out,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = g.logger.Configure()
			if err != nil {
				return nil, err
			}
			logger = logger.With("run_id", uuid.NewString())

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)

			if err := g.sentry.Configure(); err != nil {
				return nil, err
			}

			g.values, err = g.profile.Load()
			if err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdPlan(g),
			cmdDownload(g),
			cmdDoctor(g),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		g.sentry.Capture(err)
		return err
	}

	return nil
}
