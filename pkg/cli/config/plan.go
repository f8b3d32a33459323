package config

import (
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Plan holds the options of the plan subcommand
type Plan struct {
	RepoType       string
	RepoID         string
	Output         string
	AllowPatterns  []string
	IgnorePatterns []string
}

// Flags returns CLI flags for the plan subcommand
func (c *Plan) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repo-type",
			Usage:       "Repository type (model, dataset)",
			Value:       string(model.RepoTypeModel),
			Destination: &c.RepoType,
		},
		&cli.StringFlag{
			Name:        "repo-id",
			Usage:       "Repository ID (owner/name)",
			Required:    true,
			Destination: &c.RepoID,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Plan output path (default: <repo_type>__<repo_id>.json)",
			Destination: &c.Output,
		},
		&cli.StringSliceFlag{
			Name:        "allow-pattern",
			Usage:       "Glob of files to include (repeatable)",
			Destination: &c.AllowPatterns,
		},
		&cli.StringSliceFlag{
			Name:        "ignore-pattern",
			Usage:       "Glob of files to exclude (repeatable)",
			Destination: &c.IgnorePatterns,
		},
	}
}

// Request builds the planner request
func (c *Plan) Request(revision string) model.PlanRequest {
	return model.PlanRequest{
		RepoType:       model.RepoType(c.RepoType),
		RepoID:         c.RepoID,
		Revision:       revision,
		Output:         c.Output,
		AllowPatterns:  c.AllowPatterns,
		IgnorePatterns: c.IgnorePatterns,
	}
}
