package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// Outcome is the state of a DownloadJob
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// ErrorKind names why a job failed
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindNoUsableURL        ErrorKind = "no_usable_url"
	ErrorKindHTTPStatus         ErrorKind = "http_status"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindIOWrite            ErrorKind = "io_write"
	ErrorKindSizeMismatch       ErrorKind = "size_mismatch"
	ErrorKindChecksumMismatch   ErrorKind = "checksum_mismatch"
	ErrorKindNoAddressForFamily ErrorKind = "no_address_for_family"
	ErrorKindConnectRefused     ErrorKind = "connect_refused"
	ErrorKindNetworkUnreachable ErrorKind = "network_unreachable"
	ErrorKindConnection         ErrorKind = "connection"
	ErrorKindCanceled           ErrorKind = "canceled"
	ErrorKindInternal           ErrorKind = "internal"
)

// KindOf maps a tagged error to its ErrorKind. The first matching tag wins.
// Untagged errors are treated as connection failures since everything else
// is tagged at its origin.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case goerr.HasTag(err, types.ErrTagInternal):
		return ErrorKindInternal
	case goerr.HasTag(err, types.ErrTagCanceled):
		return ErrorKindCanceled
	case goerr.HasTag(err, types.ErrTagNoUsableURL):
		return ErrorKindNoUsableURL
	case goerr.HasTag(err, types.ErrTagNoAddressForFamily):
		return ErrorKindNoAddressForFamily
	case goerr.HasTag(err, types.ErrTagConnectTimeout), goerr.HasTag(err, types.ErrTagTimeout):
		return ErrorKindTimeout
	case goerr.HasTag(err, types.ErrTagConnectRefused):
		return ErrorKindConnectRefused
	case goerr.HasTag(err, types.ErrTagNetworkUnreachable):
		return ErrorKindNetworkUnreachable
	case goerr.HasTag(err, types.ErrTagHTTPStatus):
		return ErrorKindHTTPStatus
	case goerr.HasTag(err, types.ErrTagSizeMismatch):
		return ErrorKindSizeMismatch
	case goerr.HasTag(err, types.ErrTagChecksumMismatch):
		return ErrorKindChecksumMismatch
	case goerr.HasTag(err, types.ErrTagIOWrite):
		return ErrorKindIOWrite
	default:
		return ErrorKindConnection
	}
}

// DownloadJob binds one manifest entry to a destination and a chosen URL.
// It is written once by the worker that executes it and read-only afterwards.
type DownloadJob struct {
	Index      int
	Entry      *ManifestEntry
	ChosenURL  string
	DestPath   string
	Outcome    Outcome
	Kind       ErrorKind
	StatusCode int
	Bytes      int64
	Conn       ConnectionObservation
	Err        error
}

// Succeed marks the job as successfully downloaded
func (j *DownloadJob) Succeed(n int64) {
	j.Outcome = OutcomeSuccess
	j.Bytes = n
}

// Skip marks the job as skipped without network access
func (j *DownloadJob) Skip() {
	j.Outcome = OutcomeSkipped
}

// Fail marks the job as failed and classifies err
func (j *DownloadJob) Fail(err error) {
	j.Outcome = OutcomeFailed
	j.Err = err
	j.Kind = KindOf(err)
	if j.Kind == ErrorKindHTTPStatus {
		if e := goerr.Unwrap(err); e != nil {
			if code, ok := e.Values()["status"].(int); ok {
				j.StatusCode = code
			}
		}
	}
}
