package model

// RepoFile is one file reported by a remote repository listing
type RepoFile struct {
	Path   string
	Size   uint64
	SHA256 string
	IsLFS  bool
	IsDir  bool
}

// PlanRequest describes which repository snapshot to plan and how to filter it
type PlanRequest struct {
	RepoType       RepoType
	RepoID         string
	Revision       string
	Output         string
	AllowPatterns  []string
	IgnorePatterns []string
}
