package async

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// ErrTagPanic marks an error converted from a recovered panic
var ErrTagPanic = goerr.NewTag("panic")

// Pool executes handler for every item on exactly min(workers, len(items))
// goroutines and returns when all of them finished.
//
// Behavior:
//   - Items are handed out in slice order; completion order is not guaranteed
//   - workers below 1 is treated as 1
//   - A handler error or panic is logged and never stops other items
//   - ctx is passed through unchanged; handlers decide how to react to cancellation
func Pool[T any](ctx context.Context, workers int, items []T, handler func(ctx context.Context, item T) error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	queue := make(chan T)
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for item := range queue {
				err := Recover(ctx, func(ctx context.Context) error {
					return handler(ctx, item)
				})
				if err != nil {
					ctxlog.From(ctx).Error("error in async handler", "error", err)
				}
			}
			return nil
		})
	}

	for _, item := range items {
		queue <- item
	}
	close(queue)

	_ = g.Wait()
}

// Recover runs fn and turns a panic into an error tagged with ErrTagPanic.
// The panic value and stack are logged.
func Recover(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			ctxlog.From(ctx).Error("panic in async handler",
				"recover", r,
				"stack", string(stack))
			err = goerr.New("panic in async handler",
				goerr.V("recover", r),
				goerr.T(ErrTagPanic))
		}
	}()

	return fn(ctx)
}
