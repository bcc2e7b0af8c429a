package ledger

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared refresh, which no single caller can cancel.
const refreshTimeout = time.Minute

// RefreshFunc performs one refresh round-trip against the server.
type RefreshFunc func(context.Context) (Auth, error)

// RefreshCoordinator collapses concurrent refreshes into a single call.
// While a refresh is in flight, every other caller waits for and shares its outcome;
// once it settles, the next caller starts a fresh one.
type RefreshCoordinator struct {
	fn    RefreshFunc
	group singleflight.Group
}

func NewRefreshCoordinator(fn RefreshFunc) *RefreshCoordinator {
	return &RefreshCoordinator{fn: fn}
}

// Refresh joins the in-flight refresh or starts a new one.
// A caller whose context ends stops waiting; the shared call carries on for the others,
// including when that caller is the one who started it.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (Auth, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		return c.fn(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Auth{}, res.Err
		}

		return res.Val.(Auth), nil

	case <-ctx.Done():
		return Auth{}, ctx.Err()
	}
}
