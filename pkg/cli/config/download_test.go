package config_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/msipv6/pkg/cli/config"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

func TestDownload_Options(t *testing.T) {
	dl := &config.Download{
		LocalDir:  "out",
		Workers:   3,
		Timeout:   15,
		OnlyNoRaw: true,
	}
	gt.Value(t, dl.Options()).Equal(model.ExecuteOptions{
		LocalDir:     "out",
		Workers:      3,
		SkipExisting: true,
		Timeout:      15 * time.Second,
		OnlyNoRaw:    true,
	})

	dl.NoSkipExisting = true
	dl.Overwrite = true
	opts := dl.Options()
	gt.False(t, opts.SkipExisting)
	gt.True(t, opts.Overwrite)
}

func TestDownload_Validate(t *testing.T) {
	gt.NoError(t, (&config.Download{Timeout: 1}).Validate())

	for _, timeout := range []int{0, -5} {
		err := (&config.Download{Timeout: timeout}).Validate()
		gt.True(t, goerr.HasTag(err, types.ErrTagInvalidTimeout))
	}
}

func TestPlan_Request(t *testing.T) {
	p := &config.Plan{
		RepoType:      "dataset",
		RepoID:        "org/data",
		AllowPatterns: []string{"*.csv"},
	}
	req := p.Request("v1")
	gt.Value(t, req.RepoType).Equal(model.RepoTypeDataset)
	gt.Value(t, req.Revision).Equal("v1")
	gt.Value(t, req.AllowPatterns).Equal([]string{"*.csv"})
}

func TestNetwork_Transport(t *testing.T) {
	tr := (&config.Network{IPv6: true}).Transport(time.Second, &config.Repository{Token: "x"})
	gt.Value(t, tr.Mode()).Equal(model.DialModeForceV6)

	tr = (&config.Network{}).Transport(time.Second, nil)
	gt.Value(t, tr.Mode()).Equal(model.DialModeObserve)
}

func TestNetwork_TransportTokenHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	send := func(endpoint string) string {
		tr := (&config.Network{}).Transport(time.Second, &config.Repository{Endpoint: endpoint, Token: "x"})
		resp, err := tr.Client().Get(srv.URL)
		gt.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		gt.NoError(t, err)
		return string(body)
	}

	gt.Value(t, send(srv.URL)).Equal("Bearer x")
	gt.Value(t, send("https://hub.example.com")).Equal("")
}

func TestSentry_Disabled(t *testing.T) {
	s := &config.Sentry{}
	gt.False(t, s.Enabled())
	gt.NoError(t, s.Configure())
	s.Capture(nil)
}
