package types

import "github.com/m-mizutani/goerr/v2"

// Dial errors. Confined to the job that produced them.
var (
	ErrTagNoAddressForFamily = goerr.NewTag("no_address_for_family")
	ErrTagConnectTimeout     = goerr.NewTag("connect_timeout")
	ErrTagConnectRefused     = goerr.NewTag("connect_refused")
	ErrTagNetworkUnreachable = goerr.NewTag("network_unreachable")
)

// Plan format errors. Structural: reported before any job is dispatched.
var (
	ErrTagMissingField  = goerr.NewTag("missing_field")
	ErrTagDuplicatePath = goerr.NewTag("duplicate_path")
	ErrTagPathTraversal = goerr.NewTag("path_traversal")
	ErrTagInvalidPlan   = goerr.NewTag("invalid_plan")
)

// Job errors.
var (
	ErrTagNoUsableURL      = goerr.NewTag("no_usable_url")
	ErrTagHTTPStatus       = goerr.NewTag("http_status")
	ErrTagTimeout          = goerr.NewTag("timeout")
	ErrTagIOWrite          = goerr.NewTag("io_write")
	ErrTagSizeMismatch     = goerr.NewTag("size_mismatch")
	ErrTagChecksumMismatch = goerr.NewTag("checksum_mismatch")
	ErrTagCanceled         = goerr.NewTag("canceled")
	ErrTagInternal         = goerr.NewTag("internal")
)

// Options errors. Structural.
var (
	ErrTagInvalidCombination = goerr.NewTag("invalid_combination")
	ErrTagInvalidWorkerCount = goerr.NewTag("invalid_worker_count")
	ErrTagInvalidTimeout     = goerr.NewTag("invalid_timeout")
)

// ErrTagDownloadFailed marks a download run that finished with failed jobs
var ErrTagDownloadFailed = goerr.NewTag("download_failed")
