package model_test

import (
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

var (
	isInvalidPlan   = func(err error) bool { return goerr.HasTag(err, types.ErrTagInvalidPlan) }
	isMissingField  = func(err error) bool { return goerr.HasTag(err, types.ErrTagMissingField) }
	isDuplicatePath = func(err error) bool { return goerr.HasTag(err, types.ErrTagDuplicatePath) }
	isPathTraversal = func(err error) bool { return goerr.HasTag(err, types.ErrTagPathTraversal) }
)

func TestValidateRemotePath(t *testing.T) {
	testCases := []struct {
		path string
		has  func(error) bool
	}{
		{path: "model.bin"},
		{path: "sub/dir/model.bin"},
		{path: "./a/../b.bin", has: isPathTraversal},
		{path: "a/./b.bin"},
		{path: "", has: isMissingField},
		{path: "../../etc/passwd", has: isPathTraversal},
		{path: "a/../../b", has: isPathTraversal},
		{path: `a\..\..\b`, has: isPathTraversal},
		{path: "/etc/passwd", has: isPathTraversal},
		{path: `C:\Windows\x`, has: isPathTraversal},
		{path: "a\x00b", has: isPathTraversal},
		{path: ".", has: isPathTraversal},
		{path: "a/"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			err := model.ValidateRemotePath(tc.path)
			if tc.has == nil {
				gt.NoError(t, err)
				return
			}
			gt.Error(t, err)
			gt.True(t, tc.has(err))
		})
	}
}

func TestDestPath(t *testing.T) {
	root := t.TempDir()

	dest, err := model.DestPath(root, "sub/dir/w.bin")
	gt.NoError(t, err)
	gt.Value(t, dest).Equal(filepath.Join(root, "sub", "dir", "w.bin"))

	dest, err = model.DestPath(root, "a/./b.bin")
	gt.NoError(t, err)
	gt.Value(t, dest).Equal(filepath.Join(root, "a", "b.bin"))

	_, err = model.DestPath(root, "../escape")
	gt.True(t, goerr.HasTag(err, types.ErrTagPathTraversal))
}

func validPlan() *model.Plan {
	return &model.Plan{
		RepoType: model.RepoTypeModel,
		RepoID:   "org/demo",
		Entries: []model.ManifestEntry{
			{RemotePath: "a.bin", PrimaryURL: "https://raw/a.bin"},
			{RemotePath: "b/c.bin", FallbackURL: "https://api/b/c.bin"},
		},
	}
}

func TestPlan_Validate(t *testing.T) {
	gt.NoError(t, validPlan().Validate())

	testCases := map[string]struct {
		mutate func(p *model.Plan)
		has    func(error) bool
		layout bool
	}{
		"unknown repo type": {
			mutate: func(p *model.Plan) { p.RepoType = "space" },
			has:    isInvalidPlan,
			layout: true,
		},
		"missing repo id": {
			mutate: func(p *model.Plan) { p.RepoID = "" },
			has:    isMissingField,
			layout: true,
		},
		"duplicate path": {
			mutate: func(p *model.Plan) {
				p.Entries = append(p.Entries, model.ManifestEntry{RemotePath: "b/./c.bin", PrimaryURL: "x"})
			},
			has:    isDuplicatePath,
			layout: true,
		},
		"traversal": {
			mutate: func(p *model.Plan) {
				p.Entries = append(p.Entries, model.ManifestEntry{RemotePath: "../../etc/passwd", PrimaryURL: "x"})
			},
			has:    isPathTraversal,
			layout: true,
		},
		"no url": {
			mutate: func(p *model.Plan) {
				p.Entries = append(p.Entries, model.ManifestEntry{RemotePath: "orphan.bin"})
			},
			has:    isMissingField,
			layout: false,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			p := validPlan()
			tc.mutate(p)

			err := p.Validate()
			gt.Error(t, err)
			gt.True(t, tc.has(err))

			err = p.ValidateLayout()
			if tc.layout {
				gt.True(t, tc.has(err))
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestDefaultPlanFileName(t *testing.T) {
	gt.Value(t, model.DefaultPlanFileName(model.RepoTypeModel, "org/demo")).Equal("model__org__demo.json")
	gt.Value(t, model.DefaultPlanFileName(model.RepoTypeDataset, "a/b/c")).Equal("dataset__a__b__c.json")
}
