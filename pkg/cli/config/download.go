package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Download holds the options of the download subcommand
type Download struct {
	Plan           string
	LocalDir       string
	Workers        int
	Overwrite      bool
	NoSkipExisting bool
	OnlyRaw        bool
	OnlyNoRaw      bool
	Timeout        int
	AllowFailures  bool
}

// Flags returns CLI flags for the download subcommand
func (c *Download) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "plan",
			Usage:       "Plan file to execute",
			Required:    true,
			Destination: &c.Plan,
		},
		&cli.StringFlag{
			Name:        "local-dir",
			Usage:       "Destination root directory",
			Destination: &c.LocalDir,
			Sources:     cli.EnvVars("MS_IPV6_LOCAL_DIR"),
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Number of concurrent downloads",
			Value:       model.DefaultWorkers,
			Destination: &c.Workers,
			Sources:     cli.EnvVars("MS_IPV6_WORKERS"),
		},
		&cli.BoolFlag{
			Name:        "overwrite",
			Usage:       "Replace existing files",
			Destination: &c.Overwrite,
		},
		&cli.BoolFlag{
			Name:        "no-skip-existing",
			Usage:       "Download files even if they already exist (--overwrite wins when combined)",
			Destination: &c.NoSkipExisting,
		},
		&cli.BoolFlag{
			Name:        "only-raw",
			Usage:       "Only download entries that have a raw URL",
			Destination: &c.OnlyRaw,
		},
		&cli.BoolFlag{
			Name:        "only-no-raw",
			Usage:       "Only download entries that have no raw URL",
			Destination: &c.OnlyNoRaw,
		},
		&cli.IntFlag{
			Name:        "timeout",
			Usage:       "Per-request timeout in seconds",
			Value:       int(model.DefaultTimeout / time.Second),
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("MS_IPV6_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:        "allow-failures",
			Usage:       "Exit with status 0 even if some files failed",
			Destination: &c.AllowFailures,
		},
	}
}

// Validate rejects a non-positive --timeout. The same value drives both the
// transport and the executor, so it is checked before either is built.
func (c *Download) Validate() error {
	if c.Timeout <= 0 {
		return goerr.New("timeout must be a positive number of seconds",
			goerr.V("timeout", c.Timeout),
			goerr.T(types.ErrTagInvalidTimeout))
	}
	return nil
}

// TimeoutDuration returns the timeout as a duration
func (c *Download) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Options converts the flags into executor options
func (c *Download) Options() model.ExecuteOptions {
	return model.ExecuteOptions{
		LocalDir:     c.LocalDir,
		Workers:      c.Workers,
		Overwrite:    c.Overwrite,
		SkipExisting: !c.NoSkipExisting,
		Timeout:      c.TimeoutDuration(),
		OnlyRaw:      c.OnlyRaw,
		OnlyNoRaw:    c.OnlyNoRaw,
	}
}
