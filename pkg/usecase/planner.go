package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/interfaces"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

type planner struct {
	client interfaces.RepositoryClient
	store  interfaces.PlanStore
	now    func() time.Time
}

// PlannerOption configures the planner
type PlannerOption func(*planner)

// WithClock replaces the time source used for generated_at
func WithClock(now func() time.Time) PlannerOption {
	return func(p *planner) {
		p.now = now
	}
}

// NewPlanner creates a Planner listing files through client and persisting
// plans with store
func NewPlanner(client interfaces.RepositoryClient, store interfaces.PlanStore, opts ...PlannerOption) interfaces.Planner {
	p := &planner{
		client: client,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate lists the repository, filters the files and saves the plan
func (p *planner) Generate(ctx context.Context, req model.PlanRequest) (string, error) {
	logger := ctxlog.From(ctx)

	if !req.RepoType.Valid() {
		return "", goerr.New("invalid repo type",
			goerr.V("repo_type", req.RepoType),
			goerr.T(types.ErrTagInvalidPlan))
	}
	if req.RepoID == "" {
		return "", goerr.New("repo id is required", goerr.T(types.ErrTagMissingField))
	}
	for _, pattern := range append(append([]string{}, req.AllowPatterns...), req.IgnorePatterns...) {
		if !doublestar.ValidatePattern(pattern) {
			return "", goerr.New("invalid pattern",
				goerr.V("pattern", pattern),
				goerr.T(types.ErrTagInvalidCombination))
		}
	}

	files, err := p.client.ListFiles(ctx, req.RepoType, req.RepoID, req.Revision)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list repository files",
			goerr.V("repo_type", req.RepoType),
			goerr.V("repo_id", req.RepoID))
	}

	plan := &model.Plan{
		RepoType:    req.RepoType,
		RepoID:      req.RepoID,
		Revision:    req.Revision,
		GeneratedAt: p.now().UTC(),
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.IsDir {
			continue
		}
		remote := strings.TrimPrefix(f.Path, "/")
		if !selected(remote, req.AllowPatterns, req.IgnorePatterns) {
			continue
		}
		if _, ok := seen[remote]; ok {
			continue
		}
		seen[remote] = struct{}{}

		entry := model.ManifestEntry{
			RemotePath:  remote,
			FallbackURL: p.client.FallbackURL(req.RepoType, req.RepoID, req.Revision, remote),
			SHA256:      strings.ToLower(f.SHA256),
		}
		if f.IsLFS {
			entry.PrimaryURL = p.client.RawURL(req.RepoType, req.RepoID, req.Revision, remote)
		}
		size := f.Size
		entry.Size = &size
		plan.Entries = append(plan.Entries, entry)
	}

	sort.SliceStable(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].RemotePath < plan.Entries[j].RemotePath
	})

	if err := plan.Validate(); err != nil {
		return "", goerr.Wrap(err, "generated plan is invalid", goerr.V("repo_id", req.RepoID))
	}

	output := req.Output
	if output == "" {
		output = model.DefaultPlanFileName(req.RepoType, req.RepoID)
	}
	if err := p.store.Save(output, plan); err != nil {
		return "", goerr.Wrap(err, "failed to save plan", goerr.V("output", output))
	}

	logger.Info("Plan generated",
		"repo_type", req.RepoType,
		"repo_id", req.RepoID,
		"listed", len(files),
		"entries", len(plan.Entries),
		"output", output,
	)
	return output, nil
}

// selected applies allow patterns (any must match, when given) and then
// ignore patterns (none may match)
func selected(remote string, allow, ignore []string) bool {
	if len(allow) > 0 {
		matched := false
		for _, pattern := range allow {
			if match(pattern, remote) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range ignore {
		if match(pattern, remote) {
			return false
		}
	}
	return true
}

// match also tries the base name so that "*.json" selects nested files
func match(pattern, remote string) bool {
	if ok, _ := doublestar.Match(pattern, remote); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		base := remote[strings.LastIndex(remote, "/")+1:]
		ok, _ := doublestar.Match(pattern, base)
		return ok
	}
	return false
}
