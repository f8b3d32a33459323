package interfaces

import (
	"context"

	"github.com/m-mizutani/msipv6/pkg/domain/model"
)

// RepositoryClient lists files of a remote model or dataset repository
type RepositoryClient interface {
	// ListFiles returns every file of the repository at revision
	ListFiles(ctx context.Context, repoType model.RepoType, repoID, revision string) ([]model.RepoFile, error)

	// RawURL returns the direct download URL of a file
	RawURL(repoType model.RepoType, repoID, revision, path string) string

	// FallbackURL returns the origin (API) download URL of a file
	FallbackURL(repoType model.RepoType, repoID, revision, path string) string
}

// PlanStore persists plans
type PlanStore interface {
	Load(path string) (*model.Plan, error)
	Save(path string, plan *model.Plan) error
}
