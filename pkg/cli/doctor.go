package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/m-mizutani/msipv6/pkg/infra/network"
	"github.com/m-mizutani/msipv6/pkg/utils/cachedir"
	"github.com/urfave/cli/v3"
)

func cmdDoctor(g *globals) *cli.Command {
	var (
		target  string
		timeout int
	)

	return &cli.Command{
		Name:  "doctor",
		Usage: "Show environment and connectivity diagnostics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "URL to check with a HEAD request (default: endpoint)",
				Destination: &target,
			},
			&cli.IntFlag{
				Name:        "timeout",
				Usage:       "Connectivity check timeout in seconds",
				Value:       10,
				Destination: &timeout,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			g.values.Apply(c, &g.network, nil, &g.repo)
			if timeout <= 0 {
				return goerr.New("timeout must be a positive number of seconds",
					goerr.V("timeout", timeout),
					goerr.T(types.ErrTagInvalidTimeout))
			}
			if target == "" {
				target = g.repo.Endpoint
			}

			ok := color.New(color.FgGreen)
			ng := color.New(color.FgRed)
			w := g.out

			_, _ = fmt.Fprintf(w, "version:    %s\n", types.Version)
			_, _ = fmt.Fprintf(w, "cache dir:  %s\n", cachedir.Default())

			_, _ = fmt.Fprint(w, "ipv6 route: ")
			if network.IPv6Available(ctx) {
				_, _ = ok.Fprintln(w, "available")
			} else {
				_, _ = ng.Fprintln(w, "unavailable")
			}

			transport := g.network.Transport(time.Duration(timeout)*time.Second, &g.repo)
			_, _ = fmt.Fprintf(w, "mode:       %s\n", transport.Mode().String())

			var obs model.ConnectionObservation
			checkCtx := network.TraceConnection(ctx, func(o model.ConnectionObservation) {
				obs = o
			})
			req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, target, nil)
			if err != nil {
				return goerr.Wrap(err, "invalid check URL", goerr.V("url", target))
			}

			resp, err := transport.Client().Do(req)
			if err != nil {
				_, _ = ng.Fprintf(w, "check:      %s failed: %v\n", target, err)
				return goerr.Wrap(err, "connectivity check failed", goerr.V("url", target))
			}
			_ = resp.Body.Close()

			if obs.Family == model.FamilyUnknown {
				obs = transport.LastObservation()
			}
			_, _ = ok.Fprintf(w, "check:      %s %d\n", target, resp.StatusCode)
			_, _ = fmt.Fprintf(w, "family:     %s\n", obs.Family.String())
			_, _ = fmt.Fprintf(w, "peer:       %s\n", obs.PeerString())
			return nil
		},
	}
}
