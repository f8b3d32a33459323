package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Profile points at an optional TOML or YAML file holding default flag values
type Profile struct {
	Path string
}

// ProfileValues are the keys a profile file may set. Nil means unset.
type ProfileValues struct {
	IPv6          *bool   `toml:"ipv6" yaml:"ipv6"`
	Workers       *int    `toml:"workers" yaml:"workers"`
	Timeout       *int    `toml:"timeout" yaml:"timeout"`
	LocalDir      *string `toml:"local_dir" yaml:"local_dir"`
	Overwrite     *bool   `toml:"overwrite" yaml:"overwrite"`
	SkipExisting  *bool   `toml:"skip_existing" yaml:"skip_existing"`
	OnlyRaw       *bool   `toml:"only_raw" yaml:"only_raw"`
	OnlyNoRaw     *bool   `toml:"only_no_raw" yaml:"only_no_raw"`
	AllowFailures *bool   `toml:"allow_failures" yaml:"allow_failures"`
	Endpoint      *string `toml:"endpoint" yaml:"endpoint"`
	Revision      *string `toml:"revision" yaml:"revision"`
}

// Flags returns CLI flags for the profile file
func (c *Profile) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Profile file with default values (.toml, .yaml, .yml)",
			Destination: &c.Path,
			Sources:     cli.EnvVars("MS_IPV6_CONFIG"),
		},
	}
}

// Load reads the profile. It returns empty values when no path is set.
func (c *Profile) Load() (*ProfileValues, error) {
	var v ProfileValues
	if c.Path == "" {
		return &v, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile", goerr.V("path", c.Path))
	}

	switch strings.ToLower(filepath.Ext(c.Path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to parse TOML profile", goerr.V("path", c.Path))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to parse YAML profile", goerr.V("path", c.Path))
		}
	default:
		return nil, goerr.New("unsupported profile format", goerr.V("path", c.Path))
	}

	return &v, nil
}

// flagSetter reports whether a flag was given explicitly
type flagSetter interface {
	IsSet(name string) bool
}

// Apply copies profile values into the targets for every flag the user did
// not set explicitly. Any target may be nil.
func (v *ProfileValues) Apply(cmd flagSetter, net *Network, dl *Download, repo *Repository) {
	if v == nil {
		return
	}
	setBool := func(flag string, dst *bool, src *bool) {
		if dst != nil && src != nil && !cmd.IsSet(flag) {
			*dst = *src
		}
	}
	setInt := func(flag string, dst *int, src *int) {
		if dst != nil && src != nil && !cmd.IsSet(flag) {
			*dst = *src
		}
	}
	setString := func(flag string, dst *string, src *string) {
		if dst != nil && src != nil && !cmd.IsSet(flag) {
			*dst = *src
		}
	}

	if net != nil {
		setBool("ipv6", &net.IPv6, v.IPv6)
	}
	if dl != nil {
		setInt("workers", &dl.Workers, v.Workers)
		setInt("timeout", &dl.Timeout, v.Timeout)
		setString("local-dir", &dl.LocalDir, v.LocalDir)
		setBool("overwrite", &dl.Overwrite, v.Overwrite)
		setBool("only-raw", &dl.OnlyRaw, v.OnlyRaw)
		setBool("only-no-raw", &dl.OnlyNoRaw, v.OnlyNoRaw)
		setBool("allow-failures", &dl.AllowFailures, v.AllowFailures)
		if v.SkipExisting != nil && !cmd.IsSet("no-skip-existing") {
			dl.NoSkipExisting = !*v.SkipExisting
		}
	}
	if repo != nil {
		setString("endpoint", &repo.Endpoint, v.Endpoint)
		setString("revision", &repo.Revision, v.Revision)
	}
}
