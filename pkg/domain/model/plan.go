package model

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// RepoType is the kind of remote repository a plan was generated from
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
)

// Valid reports whether t is a known repository type
func (t RepoType) Valid() bool {
	return t == RepoTypeModel || t == RepoTypeDataset
}

// ManifestEntry describes one remote file of a repository snapshot.
// An empty URL string means the URL is absent.
type ManifestEntry struct {
	RemotePath  string
	PrimaryURL  string
	FallbackURL string
	Size        *uint64
	SHA256      string
}

// HasPrimary reports whether the entry carries a raw (primary) URL
func (e *ManifestEntry) HasPrimary() bool { return e.PrimaryURL != "" }

// HasFallback reports whether the entry carries a fallback URL
func (e *ManifestEntry) HasFallback() bool { return e.FallbackURL != "" }

// Plan is the ordered manifest of one repository snapshot. It is treated as
// immutable once loaded; the executor only reads it.
type Plan struct {
	RepoType    RepoType
	RepoID      string
	Revision    string
	GeneratedAt time.Time
	Entries     []ManifestEntry
}

// Validate checks the plan-level invariants: known repo type, non-empty repo
// id, at least one URL per entry, safe and unique remote paths.
func (p *Plan) Validate() error {
	if err := p.ValidateLayout(); err != nil {
		return err
	}
	for i := range p.Entries {
		e := &p.Entries[i]
		if !e.HasPrimary() && !e.HasFallback() {
			return goerr.New("entry has neither raw_url nor fallback_url",
				goerr.V("index", i),
				goerr.V("path", e.RemotePath),
				goerr.T(types.ErrTagMissingField))
		}
	}
	return nil
}

// ValidateLayout checks everything Validate does except URL presence. The
// executor reports URL-less entries per job instead of rejecting the plan.
func (p *Plan) ValidateLayout() error {
	if !p.RepoType.Valid() {
		return goerr.New("invalid repo_type",
			goerr.V("repo_type", p.RepoType),
			goerr.T(types.ErrTagInvalidPlan))
	}
	if p.RepoID == "" {
		return goerr.New("repo_id is required", goerr.T(types.ErrTagMissingField))
	}

	seen := make(map[string]int, len(p.Entries))
	for i := range p.Entries {
		e := &p.Entries[i]
		if err := ValidateRemotePath(e.RemotePath); err != nil {
			return goerr.Wrap(err, "invalid entry", goerr.V("index", i))
		}

		key := normalizeRemotePath(e.RemotePath)
		if prev, ok := seen[key]; ok {
			return goerr.New("duplicate path in plan",
				goerr.V("path", e.RemotePath),
				goerr.V("index", i),
				goerr.V("first_index", prev),
				goerr.T(types.ErrTagDuplicatePath))
		}
		seen[key] = i
	}

	return nil
}

// ValidateRemotePath rejects empty, absolute and parent-escaping paths
func ValidateRemotePath(p string) error {
	if p == "" {
		return goerr.New("path is required", goerr.T(types.ErrTagMissingField))
	}

	slashed := strings.ReplaceAll(p, `\`, "/")
	switch {
	case strings.ContainsRune(p, 0):
		return goerr.New("path contains NUL byte", goerr.V("path", p), goerr.T(types.ErrTagPathTraversal))
	case strings.HasPrefix(slashed, "/"), filepath.IsAbs(p), filepath.VolumeName(p) != "":
		return goerr.New("path must be relative", goerr.V("path", p), goerr.T(types.ErrTagPathTraversal))
	case len(slashed) >= 2 && slashed[1] == ':':
		return goerr.New("path must not carry a drive letter", goerr.V("path", p), goerr.T(types.ErrTagPathTraversal))
	}

	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return goerr.New("path escapes local root", goerr.V("path", p), goerr.T(types.ErrTagPathTraversal))
		}
	}

	if normalizeRemotePath(p) == "." {
		return goerr.New("path resolves to local root", goerr.V("path", p), goerr.T(types.ErrTagPathTraversal))
	}

	return nil
}

// DestPath joins a validated remote path onto root and double-checks that the
// result stays inside root.
func DestPath(root, remotePath string) (string, error) {
	if err := ValidateRemotePath(remotePath); err != nil {
		return "", err
	}

	dest := filepath.Join(root, filepath.FromSlash(normalizeRemotePath(remotePath)))
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", goerr.New("destination escapes local root",
			goerr.V("root", root),
			goerr.V("path", remotePath),
			goerr.T(types.ErrTagPathTraversal))
	}

	return dest, nil
}

func normalizeRemotePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// DefaultPlanFileName returns "<repo_type>__<repo_id with / replaced by __>.json"
func DefaultPlanFileName(repoType RepoType, repoID string) string {
	return string(repoType) + "__" + strings.ReplaceAll(repoID, "/", "__") + ".json"
}
