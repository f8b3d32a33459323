package config

import (
	"time"

	"github.com/m-mizutani/msipv6/pkg/infra/network"
	"github.com/urfave/cli/v3"
)

// Network holds the address family setting shared by every subcommand
type Network struct {
	IPv6 bool
}

// Flags returns CLI flags for network configuration
func (c *Network) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "ipv6",
			Usage:       "Force every connection over IPv6 (AAAA records only, no IPv4 fallback)",
			Destination: &c.IPv6,
			Sources:     cli.EnvVars("MS_IPV6_FORCE_IPV6"),
		},
	}
}

// Transport builds the transport selected by --ipv6
func (c *Network) Transport(timeout time.Duration, repo *Repository) *network.Transport {
	opts := []network.Option{network.WithTimeout(timeout)}
	if repo != nil && repo.Token != "" {
		opts = append(opts, network.WithToken(repo.Token, repo.Endpoint))
	}
	return network.NewFromFlag(c.IPv6, opts...)
}
