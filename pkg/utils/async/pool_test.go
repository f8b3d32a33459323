package async_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/msipv6/pkg/utils/async"
)

// safeBuffer is a thread-safe buffer for concurrent logging
type safeBuffer struct {
	b bytes.Buffer
	m sync.Mutex
}

func (sb *safeBuffer) Write(p []byte) (int, error) {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.Write(p)
}

func (sb *safeBuffer) String() string {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.String()
}

func newLoggerCtx(buf *safeBuffer) context.Context {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.With(context.Background(), logger)
}

func TestPool(t *testing.T) {
	t.Run("runs every item", func(t *testing.T) {
		var count atomic.Int64
		items := []int{1, 2, 3, 4, 5, 6, 7}

		async.Pool(context.Background(), 3, items, func(ctx context.Context, n int) error {
			count.Add(int64(n))
			return nil
		})

		gt.Number(t, count.Load()).Equal(int64(28))
	})

	t.Run("never exceeds worker count", func(t *testing.T) {
		var running, peak atomic.Int64
		items := make([]int, 20)

		async.Pool(context.Background(), 2, items, func(ctx context.Context, _ int) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return nil
		})

		gt.True(t, peak.Load() <= 2)
		gt.True(t, peak.Load() >= 1)
	})

	t.Run("hands out items in order", func(t *testing.T) {
		var (
			mu    sync.Mutex
			order []int
		)
		items := []int{0, 1, 2, 3, 4, 5}

		async.Pool(context.Background(), 1, items, func(ctx context.Context, n int) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		})

		gt.Value(t, order).Equal(items)
	})

	t.Run("zero workers is clamped", func(t *testing.T) {
		var count atomic.Int64
		async.Pool(context.Background(), 0, []string{"a", "b"}, func(ctx context.Context, _ string) error {
			count.Add(1)
			return nil
		})
		gt.Number(t, count.Load()).Equal(int64(2))
	})

	t.Run("empty input returns immediately", func(t *testing.T) {
		async.Pool(context.Background(), 4, nil, func(ctx context.Context, _ int) error {
			t.Error("handler must not be called")
			return nil
		})
	})

	t.Run("errors and panics do not stop other items", func(t *testing.T) {
		buf := &safeBuffer{}
		ctx := newLoggerCtx(buf)
		var count atomic.Int64

		async.Pool(ctx, 2, []int{0, 1, 2, 3}, func(ctx context.Context, n int) error {
			count.Add(1)
			switch n {
			case 1:
				return errors.New("item failed")
			case 2:
				panic("item panicked")
			}
			return nil
		})

		gt.Number(t, count.Load()).Equal(int64(4))
		out := buf.String()
		gt.True(t, strings.Contains(out, "error in async handler"))
		gt.True(t, strings.Contains(out, "item failed"))
		gt.True(t, strings.Contains(out, "panic in async handler"))
	})
}

func TestRecover(t *testing.T) {
	t.Run("passes through result", func(t *testing.T) {
		gt.NoError(t, async.Recover(context.Background(), func(ctx context.Context) error {
			return nil
		}))

		want := errors.New("plain")
		err := async.Recover(context.Background(), func(ctx context.Context) error {
			return want
		})
		gt.True(t, errors.Is(err, want))
		gt.False(t, goerr.HasTag(err, async.ErrTagPanic))
	})

	t.Run("recovers from panic with stack trace", func(t *testing.T) {
		buf := &safeBuffer{}
		ctx := newLoggerCtx(buf)

		err := async.Recover(ctx, func(ctx context.Context) error {
			panic("test panic with stack")
		})

		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, async.ErrTagPanic))

		logOutput := buf.String()
		gt.True(t, strings.Contains(logOutput, "panic in async handler"))
		gt.True(t, strings.Contains(logOutput, "test panic with stack"))
		gt.True(t, strings.Contains(logOutput, "goroutine"))
		gt.True(t, strings.Contains(logOutput, "pool_test.go"))
	})
}
