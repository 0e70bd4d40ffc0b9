package kanban

import (
	"context"

	"github.com/emrecunlu/trello-clone/model"
)

// IdentityProvider yields the authenticated caller of an operation.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (model.Identity, bool)
}

type identityKey struct{}

// WithIdentity attaches the authenticated caller to ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// ContextIdentity reads the identity placed in the context by WithIdentity.
type ContextIdentity struct{}

func (ContextIdentity) CurrentIdentity(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(model.Identity)
	if !ok || id.UserID == "" {
		return model.Identity{}, false
	}
	return id, true
}

// Invalidator is told after a committed mutation that an owner's board list
// changed, so caches and watching clients can re-fetch it.
type Invalidator interface {
	Invalidate(ctx context.Context, ownerID string)
}

// Invalidators fans an invalidation out to several observers.
type Invalidators []Invalidator

func (is Invalidators) Invalidate(ctx context.Context, ownerID string) {
	for _, i := range is {
		if i != nil {
			i.Invalidate(ctx, ownerID)
		}
	}
}
