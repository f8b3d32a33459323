package config

import (
	"net/http"

	"github.com/m-mizutani/msipv6/pkg/domain/interfaces"
	"github.com/m-mizutani/msipv6/pkg/infra/modelscope"
	"github.com/urfave/cli/v3"
)

// Repository holds the remote hub settings
type Repository struct {
	Endpoint string
	Token    string `masq:"secret"`
	Revision string
}

// Flags returns CLI flags for the remote hub
func (c *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "endpoint",
			Usage:       "Hub endpoint",
			Value:       modelscope.DefaultEndpoint,
			Destination: &c.Endpoint,
			Sources:     cli.EnvVars("MS_IPV6_ENDPOINT", "MODELSCOPE_ENDPOINT"),
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "Hub API token",
			Destination: &c.Token,
			Sources:     cli.EnvVars("MS_IPV6_TOKEN", "MODELSCOPE_API_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "revision",
			Usage:       "Repository revision",
			Value:       "master",
			Destination: &c.Revision,
			Sources:     cli.EnvVars("MS_IPV6_REVISION"),
		},
	}
}

// Client creates the repository listing client
func (c *Repository) Client(httpClient *http.Client) interfaces.RepositoryClient {
	return modelscope.NewClient(httpClient, modelscope.WithEndpoint(c.Endpoint))
}
