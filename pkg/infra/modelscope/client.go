package modelscope

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/interfaces"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
)

// DefaultEndpoint is the public ModelScope hub
const DefaultEndpoint = "https://www.modelscope.cn"

const defaultPageSize = 100

type client struct {
	httpClient *http.Client
	endpoint   string
	pageSize   int
}

// Option configures the client
type Option func(*client)

// WithEndpoint overrides DefaultEndpoint
func WithEndpoint(endpoint string) Option {
	return func(c *client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithPageSize sets the page size of dataset tree listings
func WithPageSize(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a ModelScope RepositoryClient. httpClient is normally
// the one of a network.Transport so listing goes over the same family as
// the downloads.
func NewClient(httpClient *http.Client, opts ...Option) interfaces.RepositoryClient {
	c := &client{
		httpClient: httpClient,
		endpoint:   DefaultEndpoint,
		pageSize:   defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiFile struct {
	Name   string `json:"Name"`
	Path   string `json:"Path"`
	Type   string `json:"Type"`
	Size   uint64 `json:"Size"`
	Sha256 string `json:"Sha256"`
	IsLFS  bool   `json:"IsLFS"`
}

type apiResponse struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
	Success *bool  `json:"Success"`
	Data    struct {
		Files []apiFile `json:"Files"`
	} `json:"Data"`
}

func (f apiFile) toModel() model.RepoFile {
	p := f.Path
	if p == "" {
		p = f.Name
	}
	return model.RepoFile{
		Path:   p,
		Size:   f.Size,
		SHA256: f.Sha256,
		IsLFS:  f.IsLFS,
		IsDir:  f.Type == "tree",
	}
}

// ListFiles returns every file of the repository at revision
func (c *client) ListFiles(ctx context.Context, repoType model.RepoType, repoID, revision string) ([]model.RepoFile, error) {
	switch repoType {
	case model.RepoTypeModel:
		return c.listModelFiles(ctx, repoID, revision)
	case model.RepoTypeDataset:
		return c.listDatasetFiles(ctx, repoID, revision)
	default:
		return nil, goerr.New("unsupported repo type", goerr.V("repo_type", repoType))
	}
}

func (c *client) listModelFiles(ctx context.Context, repoID, revision string) ([]model.RepoFile, error) {
	q := url.Values{}
	q.Set("Revision", revision)
	q.Set("Recursive", "true")
	u := c.endpoint + "/api/v1/models/" + repoID + "/repo/files?" + q.Encode()

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	files := make([]model.RepoFile, 0, len(resp.Data.Files))
	for _, f := range resp.Data.Files {
		files = append(files, f.toModel())
	}
	return files, nil
}

func (c *client) listDatasetFiles(ctx context.Context, repoID, revision string) ([]model.RepoFile, error) {
	var files []model.RepoFile
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("Revision", revision)
		q.Set("Root", "/")
		q.Set("Recursive", "true")
		q.Set("PageNumber", strconv.Itoa(page))
		q.Set("PageSize", strconv.Itoa(c.pageSize))
		u := c.endpoint + "/api/v1/datasets/" + repoID + "/repo/tree?" + q.Encode()

		resp, err := c.get(ctx, u)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list dataset page", goerr.V("page", page))
		}
		for _, f := range resp.Data.Files {
			files = append(files, f.toModel())
		}

		ctxlog.From(ctx).Debug("dataset page listed",
			"repo_id", repoID,
			"page", page,
			"files", len(resp.Data.Files),
		)
		if len(resp.Data.Files) < c.pageSize {
			return files, nil
		}
	}
}

func (c *client) get(ctx context.Context, u string) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create listing request", goerr.V("url", u))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to request listing", goerr.V("url", u))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read listing", goerr.V("url", u))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected listing status",
			goerr.V("url", u),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", truncate(string(body), 512)))
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to decode listing", goerr.V("url", u))
	}
	if (out.Success != nil && !*out.Success) || (out.Code != 0 && out.Code != http.StatusOK) {
		return nil, goerr.New("listing rejected by hub",
			goerr.V("url", u),
			goerr.V("code", out.Code),
			goerr.V("message", out.Message))
	}
	return &out, nil
}

// RawURL returns the resolve URL served by the hub's file CDN
func (c *client) RawURL(repoType model.RepoType, repoID, revision, path string) string {
	return c.endpoint + "/" + kindPath(repoType) + "/" + repoID + "/resolve/" + url.PathEscape(revision) + "/" + escapePath(path)
}

// FallbackURL returns the API download URL
func (c *client) FallbackURL(repoType model.RepoType, repoID, revision, path string) string {
	q := url.Values{}
	q.Set("Revision", revision)
	q.Set("FilePath", path)
	return c.endpoint + "/api/v1/" + kindPath(repoType) + "/" + repoID + "/repo?" + q.Encode()
}

func kindPath(repoType model.RepoType) string {
	if repoType == model.RepoTypeDataset {
		return "datasets"
	}
	return "models"
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
