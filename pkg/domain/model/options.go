package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// DefaultWorkers and DefaultTimeout mirror the CLI defaults
const (
	DefaultWorkers = 4
	DefaultTimeout = 60 * time.Second
)

// ExecuteOptions controls a PlanExecutor run
type ExecuteOptions struct {
	LocalDir     string
	Workers      int
	Overwrite    bool
	SkipExisting bool
	Timeout      time.Duration
	OnlyRaw      bool
	OnlyNoRaw    bool
}

// Normalize validates the options and returns a copy with defaults applied.
// Zero workers is clamped to one; negative workers and the OnlyRaw/OnlyNoRaw
// combination are caller errors.
func (o ExecuteOptions) Normalize() (ExecuteOptions, error) {
	if o.LocalDir == "" {
		return o, goerr.New("local directory is required", goerr.T(types.ErrTagMissingField))
	}
	if o.OnlyRaw && o.OnlyNoRaw {
		return o, goerr.New("only_raw and only_no_raw are mutually exclusive",
			goerr.T(types.ErrTagInvalidCombination))
	}
	if o.Workers < 0 {
		return o, goerr.New("workers must not be negative",
			goerr.V("workers", o.Workers),
			goerr.T(types.ErrTagInvalidWorkerCount))
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}
