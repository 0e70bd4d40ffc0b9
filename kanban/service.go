// Package kanban implements the board and task operations. Every mutation
// runs in a single repository transaction, scoped to the caller's rows, and
// keeps board and task positions dense.
package kanban

import (
	"context"
	"io"
	"log/slog"

	"github.com/emrecunlu/trello-clone/model"
	"github.com/emrecunlu/trello-clone/store"
)

// Transactor runs a unit of work atomically.
type Transactor interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error
}

type BoardReader interface {
	BoardsWithTasks(ctx context.Context, ownerID string) ([]model.Board, error)
}

type Deps struct {
	Store      Transactor
	Reader     BoardReader
	Identities IdentityProvider
	Invalidate Invalidator
	Log        *slog.Logger
}

type core struct {
	Deps
}

func newCore(d Deps) core {
	if d.Identities == nil {
		d.Identities = ContextIdentity{}
	}
	if d.Invalidate == nil {
		d.Invalidate = Invalidators(nil)
	}
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return core{Deps: d}
}

func (c *core) owner(ctx context.Context) (string, error) {
	id, ok := c.Identities.CurrentIdentity(ctx)
	if !ok {
		return "", ErrAuth
	}
	return id.UserID, nil
}

// mutate runs fn in one transaction scoped to owner. fn reports whether it
// changed anything; observers are only told about committed changes, even
// when the caller has gone away by then.
func (c *core) mutate(ctx context.Context, op, owner string, fn func(ctx context.Context, sc *store.Scoped) (bool, error)) error {
	var changed bool
	err := c.Store.RunTransaction(ctx, func(ctx context.Context, repo store.Repository) error {
		var err error
		changed, err = fn(ctx, store.Scope(repo, owner))
		return err
	})
	if err != nil {
		err = classify(op, err)
		if _, ok := err.(*TransactionError); ok {
			c.Log.Error(op, "owner", owner, "err", err)
		}
		return err
	}
	if changed {
		c.Invalidate.Invalidate(context.WithoutCancel(ctx), owner)
	}
	return nil
}
