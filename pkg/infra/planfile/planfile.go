package planfile

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/interfaces"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// Suffix is the conventional plan file suffix
const Suffix = "_msv6.json"

// Pointer fields distinguish a missing key from an explicit null or zero value
type fileEntry struct {
	Path        *string `json:"path"`
	RawURL      *string `json:"raw_url"`
	FallbackURL *string `json:"fallback_url"`
	Size        *uint64 `json:"size"`
	SHA256      *string `json:"sha256,omitempty"`
}

type filePlan struct {
	RepoType    *string      `json:"repo_type"`
	RepoID      *string      `json:"repo_id"`
	Revision    string       `json:"revision,omitempty"`
	GeneratedAt *time.Time   `json:"generated_at,omitempty"`
	Entries     *[]fileEntry `json:"entries"`
}

type store struct{}

// New returns a PlanStore backed by JSON files
func New() interfaces.PlanStore {
	return &store{}
}

// Load reads and validates a plan file
func (s *store) Load(path string) (*model.Plan, error) {
	return Load(path)
}

// Save writes a plan file
func (s *store) Save(path string, plan *model.Plan) error {
	return Save(path, plan)
}

// Load reads a plan file and validates it before returning
func Load(path string) (*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read plan file", goerr.V("path", path))
	}

	plan, err := Decode(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid plan file", goerr.V("path", path))
	}
	return plan, nil
}

// Decode parses and validates plan JSON
func Decode(data []byte) (*model.Plan, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var fp filePlan
	if err := dec.Decode(&fp); err != nil {
		return nil, goerr.Wrap(err, "failed to parse plan JSON", goerr.T(types.ErrTagInvalidPlan))
	}

	switch {
	case fp.RepoType == nil:
		return nil, missing("repo_type")
	case fp.RepoID == nil:
		return nil, missing("repo_id")
	case fp.Entries == nil:
		return nil, missing("entries")
	}

	plan := &model.Plan{
		RepoType: model.RepoType(*fp.RepoType),
		RepoID:   *fp.RepoID,
		Revision: fp.Revision,
		Entries:  make([]model.ManifestEntry, 0, len(*fp.Entries)),
	}
	if fp.GeneratedAt != nil {
		plan.GeneratedAt = *fp.GeneratedAt
	}

	for i, fe := range *fp.Entries {
		if fe.Path == nil {
			return nil, goerr.Wrap(missing("path"), "invalid entry", goerr.V("index", i))
		}
		plan.Entries = append(plan.Entries, model.ManifestEntry{
			RemotePath:  *fe.Path,
			PrimaryURL:  deref(fe.RawURL),
			FallbackURL: deref(fe.FallbackURL),
			Size:        fe.Size,
			SHA256:      deref(fe.SHA256),
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Encode renders a plan as indented JSON. Absent URLs and sizes become null.
func Encode(plan *model.Plan) ([]byte, error) {
	repoType := string(plan.RepoType)
	repoID := plan.RepoID
	entries := make([]fileEntry, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		entries = append(entries, fileEntry{
			Path:        &e.RemotePath,
			RawURL:      ref(e.PrimaryURL),
			FallbackURL: ref(e.FallbackURL),
			Size:        e.Size,
			SHA256:      ref(e.SHA256),
		})
	}

	fp := filePlan{
		RepoType: &repoType,
		RepoID:   &repoID,
		Revision: plan.Revision,
		Entries:  &entries,
	}
	if !plan.GeneratedAt.IsZero() {
		at := plan.GeneratedAt.UTC()
		fp.GeneratedAt = &at
	}

	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal plan")
	}
	return append(data, '\n'), nil
}

// Save writes the plan through a temporary file in the same directory and
// renames it into place
func Save(path string, plan *model.Plan) error {
	data, err := Encode(plan)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create plan directory", goerr.V("dir", dir))
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return goerr.Wrap(err, "failed to write plan file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return goerr.Wrap(err, "failed to rename plan file", goerr.V("path", path))
	}
	return nil
}

func missing(field string) error {
	return goerr.New("required field is missing",
		goerr.V("field", field),
		goerr.T(types.ErrTagMissingField))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
