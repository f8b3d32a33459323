package modelscope_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/infra/modelscope"
)

func writeFiles(w http.ResponseWriter, files []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"Code":    200,
		"Success": true,
		"Data":    map[string]any{"Files": files},
	})
}

func TestClient_ListModelFiles(t *testing.T) {
	var gotQuery map[string]string
	r := chi.NewRouter()
	r.Get("/api/v1/models/{owner}/{name}/repo/files", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = map[string]string{
			"owner":     chi.URLParam(req, "owner"),
			"name":      chi.URLParam(req, "name"),
			"Revision":  req.URL.Query().Get("Revision"),
			"Recursive": req.URL.Query().Get("Recursive"),
		}
		writeFiles(w, []map[string]any{
			{"Name": "config.json", "Path": "config.json", "Type": "blob", "Size": 12},
			{"Name": "sub", "Path": "sub", "Type": "tree"},
			{"Name": "w.bin", "Path": "sub/w.bin", "Type": "blob", "Size": 99, "IsLFS": true, "Sha256": "aa"},
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := modelscope.NewClient(srv.Client(), modelscope.WithEndpoint(srv.URL+"/"))
	files, err := c.ListFiles(context.Background(), model.RepoTypeModel, "org/demo", "v1.0")
	gt.NoError(t, err)
	gt.Value(t, gotQuery).Equal(map[string]string{
		"owner": "org", "name": "demo", "Revision": "v1.0", "Recursive": "true",
	})
	gt.Value(t, files).Equal([]model.RepoFile{
		{Path: "config.json", Size: 12},
		{Path: "sub", IsDir: true},
		{Path: "sub/w.bin", Size: 99, IsLFS: true, SHA256: "aa"},
	})
}

func TestClient_ListDatasetFiles_Paged(t *testing.T) {
	var pages []int
	r := chi.NewRouter()
	r.Get("/api/v1/datasets/{owner}/{name}/repo/tree", func(w http.ResponseWriter, req *http.Request) {
		page, _ := strconv.Atoi(req.URL.Query().Get("PageNumber"))
		pages = append(pages, page)
		gt.Value(t, req.URL.Query().Get("PageSize")).Equal("2")

		switch page {
		case 1:
			writeFiles(w, []map[string]any{
				{"Path": "a.csv", "Type": "blob", "Size": 1},
				{"Path": "b.csv", "Type": "blob", "Size": 2},
			})
		default:
			writeFiles(w, []map[string]any{
				{"Path": "c.csv", "Type": "blob", "Size": 3},
			})
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := modelscope.NewClient(srv.Client(), modelscope.WithEndpoint(srv.URL), modelscope.WithPageSize(2))
	files, err := c.ListFiles(context.Background(), model.RepoTypeDataset, "org/data", "master")
	gt.NoError(t, err)
	gt.Value(t, pages).Equal([]int{1, 2})
	gt.Number(t, len(files)).Equal(3)
	gt.Value(t, files[2].Path).Equal("c.csv")
}

func TestClient_ListFiles_Errors(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/models/{owner}/missing/repo/files", func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"Code":404,"Message":"not found"}`, http.StatusNotFound)
	})
	r.Get("/api/v1/models/{owner}/rejected/repo/files", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"Code":10010201,"Success":false,"Message":"denied"}`))
	})
	r.Get("/api/v1/models/{owner}/broken/repo/files", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := modelscope.NewClient(srv.Client(), modelscope.WithEndpoint(srv.URL))
	for _, name := range []string{"missing", "rejected", "broken"} {
		t.Run(name, func(t *testing.T) {
			_, err := c.ListFiles(context.Background(), model.RepoTypeModel, "org/"+name, "master")
			gt.Error(t, err)
		})
	}

	_, err := c.ListFiles(context.Background(), "space", "org/x", "master")
	gt.Error(t, err)
}

func TestClient_URLs(t *testing.T) {
	c := modelscope.NewClient(http.DefaultClient, modelscope.WithEndpoint("https://hub.example.com"))

	gt.Value(t, c.RawURL(model.RepoTypeModel, "org/demo", "master", "sub dir/w.bin")).
		Equal("https://hub.example.com/models/org/demo/resolve/master/sub%20dir/w.bin")
	gt.Value(t, c.RawURL(model.RepoTypeDataset, "org/data", "v2", "a.csv")).
		Equal("https://hub.example.com/datasets/org/data/resolve/v2/a.csv")
	gt.Value(t, c.FallbackURL(model.RepoTypeModel, "org/demo", "master", "sub/w.bin")).
		Equal("https://hub.example.com/api/v1/models/org/demo/repo?FilePath=sub%2Fw.bin&Revision=master")
}

func TestClient_DefaultEndpoint(t *testing.T) {
	c := modelscope.NewClient(http.DefaultClient)
	gt.Value(t, c.FallbackURL(model.RepoTypeDataset, "a/b", "master", "x")).
		Equal(modelscope.DefaultEndpoint + "/api/v1/datasets/a/b/repo?FilePath=x&Revision=master")
}
