package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/interfaces"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/m-mizutani/msipv6/pkg/utils/async"
)

type executor struct {
	transport interfaces.Transport
}

// NewExecutor creates a PlanExecutor that downloads through transport
func NewExecutor(transport interfaces.Transport) interfaces.PlanExecutor {
	return &executor{
		transport: transport,
	}
}

// tally counts terminal outcomes from concurrent workers
type tally struct {
	success atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

func (t *tally) add(o model.Outcome) uint64 {
	switch o {
	case model.OutcomeSuccess:
		t.success.Add(1)
	case model.OutcomeSkipped:
		t.skipped.Add(1)
	case model.OutcomeFailed:
		t.failed.Add(1)
	}
	return t.success.Load() + t.skipped.Load() + t.failed.Load()
}

func (t *tally) summary(total int) *model.Summary {
	return &model.Summary{
		Total:   uint64(total),
		Success: t.success.Load(),
		Skipped: t.skipped.Load(),
		Failed:  t.failed.Load(),
	}
}

// Execute filters the plan, applies the existence policy, downloads the rest
// on opts.Workers workers and returns the folded summary
func (uc *executor) Execute(ctx context.Context, plan *model.Plan, opts model.ExecuteOptions) (*model.Summary, error) {
	logger := ctxlog.From(ctx)

	if plan == nil {
		return nil, goerr.New("plan is nil", goerr.T(types.ErrTagInvalidPlan))
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, goerr.Wrap(err, "invalid download options")
	}
	if err := plan.ValidateLayout(); err != nil {
		return nil, goerr.Wrap(err, "invalid plan", goerr.V("repo_id", plan.RepoID))
	}

	root, err := filepath.Abs(opts.LocalDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve local directory", goerr.V("local_dir", opts.LocalDir))
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create local directory", goerr.V("local_dir", root))
	}

	logger.Info("Starting download",
		"repo_type", plan.RepoType,
		"repo_id", plan.RepoID,
		"entries", len(plan.Entries),
		"local_dir", root,
		"workers", opts.Workers,
		"mode", uc.transport.Mode().String(),
	)

	var counts tally
	total := len(plan.Entries)
	pending := make([]*model.DownloadJob, 0, total)
	for i := range plan.Entries {
		job := uc.prepare(ctx, i, &plan.Entries[i], root, opts)
		if job.Outcome == model.OutcomePending {
			pending = append(pending, job)
			continue
		}
		counts.add(job.Outcome)
		uc.report(ctx, job)
	}

	async.Pool(ctx, opts.Workers, pending, func(ctx context.Context, job *model.DownloadJob) error {
		uc.run(ctx, job, opts)
		done := counts.add(job.Outcome)
		uc.report(ctx, job, "done", done, "total", total)
		return nil
	})

	summary := counts.summary(total)
	logger.Info("Download finished",
		"total", summary.Total,
		"success", summary.Success,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// prepare builds the job for one entry and resolves everything that needs no
// network access: filtering, URL choice and the existence policy
func (uc *executor) prepare(ctx context.Context, index int, entry *model.ManifestEntry, root string, opts model.ExecuteOptions) *model.DownloadJob {
	job := &model.DownloadJob{Index: index, Entry: entry}

	dest, err := model.DestPath(root, entry.RemotePath)
	if err != nil {
		job.Fail(err)
		return job
	}
	job.DestPath = dest

	switch {
	case opts.OnlyRaw && !entry.HasPrimary():
		job.Skip()
		return job
	case opts.OnlyNoRaw && entry.HasPrimary():
		job.Skip()
		return job
	}

	job.ChosenURL = chooseURL(entry, opts)
	if job.ChosenURL == "" {
		job.Fail(goerr.New("entry has no usable URL",
			goerr.V("path", entry.RemotePath),
			goerr.T(types.ErrTagNoUsableURL)))
		return job
	}

	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		job.Fail(goerr.New("destination is a directory",
			goerr.V("dest", dest),
			goerr.T(types.ErrTagIOWrite)))
	case err == nil && !opts.Overwrite && opts.SkipExisting:
		job.Skip()
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		job.Fail(goerr.Wrap(err, "failed to stat destination",
			goerr.V("dest", dest),
			goerr.T(types.ErrTagIOWrite)))
	}

	return job
}

// chooseURL prefers the raw URL unless fallback-only entries were requested
func chooseURL(entry *model.ManifestEntry, opts model.ExecuteOptions) string {
	if opts.OnlyNoRaw {
		return entry.FallbackURL
	}
	if entry.HasPrimary() {
		return entry.PrimaryURL
	}
	return entry.FallbackURL
}

// run executes one pending job and records its terminal state
func (uc *executor) run(ctx context.Context, job *model.DownloadJob, opts model.ExecuteOptions) {
	if err := ctx.Err(); err != nil {
		job.Fail(goerr.Wrap(err, "download canceled before start", goerr.T(types.ErrTagCanceled)))
		return
	}

	var n int64
	err := async.Recover(ctx, func(ctx context.Context) error {
		var err error
		n, err = uc.download(ctx, job, opts.Timeout)
		return err
	})
	if err != nil {
		if goerr.HasTag(err, async.ErrTagPanic) {
			err = goerr.Wrap(err, "download panicked", goerr.T(types.ErrTagInternal))
		}
		job.Fail(err)
		return
	}
	job.Succeed(n)
}

// report logs a job's terminal state once
func (uc *executor) report(ctx context.Context, job *model.DownloadJob, extra ...any) {
	logger := ctxlog.From(ctx).With(extra...)

	switch job.Outcome {
	case model.OutcomeSuccess:
		logger.Info("Downloaded",
			"path", job.Entry.RemotePath,
			"bytes", job.Bytes,
			"family", job.Conn.Family.String(),
		)
	case model.OutcomeSkipped:
		logger.Debug("Skipped",
			"path", job.Entry.RemotePath,
			"dest", job.DestPath,
		)
	case model.OutcomeFailed:
		conn := job.Conn
		if conn.Family == model.FamilyUnknown && job.ChosenURL != "" {
			conn = uc.transport.LastObservation()
		}
		logger.Warn("Download failed",
			"path", job.Entry.RemotePath,
			"url", job.ChosenURL,
			"family", conn.Family.String(),
			"peer", conn.PeerString(),
			"kind", string(job.Kind),
			"status", job.StatusCode,
			"error", job.Err,
		)
	}
}
