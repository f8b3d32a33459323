package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
	"github.com/m-mizutani/msipv6/pkg/infra/network"
)

var errIdleTimeout = errors.New("no data received within timeout")

// maxTempBase bounds the destination name embedded in the temporary name so
// that the result stays under the common 255 byte NAME_MAX.
const maxTempBase = 200

// tempName returns a hidden partial file name next to dest
func tempName(dest string) string {
	base := filepath.Base(dest)
	if len(base) > maxTempBase {
		cut := maxTempBase
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		base = base[:cut]
	}
	return filepath.Join(filepath.Dir(dest), "."+base+"."+uuid.NewString()[:8]+".part")
}

// openTemp creates the partial file next to the destination
var openTemp = func(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}

// download fetches job.ChosenURL into job.DestPath. The body is streamed into
// a temporary file in the destination directory and renamed into place only
// after it was fully written and verified, so a failure never leaves a
// truncated file at DestPath.
func (uc *executor) download(ctx context.Context, job *model.DownloadJob, timeout time.Duration) (int64, error) {
	dir := filepath.Dir(job.DestPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, goerr.Wrap(err, "failed to create directory",
			goerr.V("dir", dir),
			goerr.T(types.ErrTagIOWrite))
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	ctx = network.TraceConnection(ctx, func(obs model.ConnectionObservation) {
		job.Conn = obs
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.ChosenURL, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to build request", goerr.V("url", job.ChosenURL))
	}

	resp, err := uc.transport.Client().Do(req)
	if err != nil {
		return 0, classifyTransferError(ctx, err, job.ChosenURL)
	}
	defer safeClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, goerr.New("unexpected HTTP status",
			goerr.V("url", job.ChosenURL),
			goerr.V("status", resp.StatusCode),
			goerr.T(types.ErrTagHTTPStatus))
	}

	tmpName := tempName(job.DestPath)
	out, err := openTemp(tmpName)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create temporary file",
			goerr.V("path", tmpName),
			goerr.T(types.ErrTagIOWrite))
	}

	committed := false
	defer func() {
		if !committed {
			_ = out.Close()
			_ = os.Remove(tmpName)
		}
	}()

	body := newIdleReader(resp.Body, timeout, cancel)
	defer body.stop()

	sum := sha256.New()
	w := &fileWriter{w: out}
	n, err := io.Copy(io.MultiWriter(w, sum), body)
	if err != nil {
		if w.err != nil {
			return n, goerr.Wrap(w.err, "failed to write file",
				goerr.V("path", tmpName),
				goerr.T(types.ErrTagIOWrite))
		}
		return n, classifyTransferError(ctx, err, job.ChosenURL)
	}

	if err := verify(job.Entry, n, sum); err != nil {
		return n, err
	}

	if err := out.Close(); err != nil {
		return n, goerr.Wrap(err, "failed to close file",
			goerr.V("path", tmpName),
			goerr.T(types.ErrTagIOWrite))
	}
	if err := os.Rename(tmpName, job.DestPath); err != nil {
		_ = os.Remove(tmpName)
		committed = true
		return n, goerr.Wrap(err, "failed to move file into place",
			goerr.V("from", tmpName),
			goerr.V("to", job.DestPath),
			goerr.T(types.ErrTagIOWrite))
	}
	committed = true

	return n, nil
}

// verify checks the optional size and checksum hints of a manifest entry
func verify(entry *model.ManifestEntry, n int64, sum hash.Hash) error {
	if entry.Size != nil && uint64(n) != *entry.Size {
		return goerr.New("downloaded size does not match plan",
			goerr.V("path", entry.RemotePath),
			goerr.V("expected", *entry.Size),
			goerr.V("actual", n),
			goerr.T(types.ErrTagSizeMismatch))
	}
	if entry.SHA256 != "" {
		actual := hex.EncodeToString(sum.Sum(nil))
		if !strings.EqualFold(actual, entry.SHA256) {
			return goerr.New("downloaded checksum does not match plan",
				goerr.V("path", entry.RemotePath),
				goerr.V("expected", entry.SHA256),
				goerr.V("actual", actual),
				goerr.T(types.ErrTagChecksumMismatch))
		}
	}
	return nil
}

// classifyTransferError tags an error returned by the HTTP client or while
// reading the body. Errors already tagged by the dialer keep their tag.
func classifyTransferError(ctx context.Context, err error, url string) error {
	opts := []goerr.Option{goerr.V("url", url)}

	var netErr net.Error
	switch {
	case errors.Is(context.Cause(ctx), errIdleTimeout):
		opts = append(opts, goerr.T(types.ErrTagTimeout))
	case goerr.HasTag(err, types.ErrTagNoAddressForFamily),
		goerr.HasTag(err, types.ErrTagConnectTimeout),
		goerr.HasTag(err, types.ErrTagConnectRefused),
		goerr.HasTag(err, types.ErrTagNetworkUnreachable):
	case errors.Is(err, context.Canceled):
		opts = append(opts, goerr.T(types.ErrTagCanceled))
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		opts = append(opts, goerr.T(types.ErrTagTimeout))
	}

	return goerr.Wrap(err, "transfer failed", opts...)
}

// fileWriter remembers write errors so they can be told apart from read errors
type fileWriter struct {
	w   io.Writer
	err error
}

func (f *fileWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		f.err = err
	}
	return n, err
}

// idleReader cancels the request when no bytes arrive for timeout
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	once    sync.Once
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelCauseFunc) *idleReader {
	return &idleReader{
		r:       r,
		timeout: timeout,
		timer: time.AfterFunc(timeout, func() {
			cancel(errIdleTimeout)
		}),
	}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	r.once.Do(func() { r.timer.Stop() })
}

func safeClose(c io.Closer) {
	_ = c.Close()
}
