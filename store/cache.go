package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/emrecunlu/trello-clone/model"
)

type boardLister interface {
	BoardsWithTasks(ctx context.Context, ownerID string) ([]model.Board, error)
}

// Cache keeps each owner's board list (with tasks) in Redis. Entries are
// dropped by Invalidate after every committed mutation, so the next read
// re-fetches from the database. Invalidate also bumps a per-owner
// generation; a refill only lands if the generation it read before querying
// is still current, so a miss racing a commit never stores the older list.
type Cache struct {
	base  boardLister
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewCache(base boardLister, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("store.NewCache: base is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) BoardsWithTasks(ctx context.Context, ownerID string) ([]model.Board, error) {
	if boards, ok := c.load(ctx, ownerID); ok {
		return boards, nil
	}
	v, err, _ := c.group.Do(ownerID, func() (any, error) {
		gen, cacheable := c.generation(ctx, ownerID)
		boards, err := c.base.BoardsWithTasks(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.save(ctx, ownerID, gen, boards)
		}
		return boards, nil
	})
	if err != nil {
		return nil, err
	}
	return model.CloneBoards(v.([]model.Board)), nil
}

// Invalidate drops the cached board list of ownerID and bumps its
// generation. Reads already in flight are not shared with later callers.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) {
	c.group.Forget(ownerID)
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(ownerID))
		pipe.Del(ctx, boardsCacheKey(ownerID))
		return nil
	})
}

// generation reads the owner's current generation. A Redis error makes the
// result uncacheable.
func (c *Cache) generation(ctx context.Context, ownerID string) (int64, bool) {
	if c.redis == nil {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, generationKey(ownerID)).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	}
	return 0, false
}

func (c *Cache) load(ctx context.Context, ownerID string) ([]model.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardsCacheKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			_ = c.redis.Del(ctx, boardsCacheKey(ownerID)).Err()
		}
		return nil, false
	}
	var boards []model.Board
	if err := json.Unmarshal(data, &boards); err != nil {
		_ = c.redis.Del(ctx, boardsCacheKey(ownerID)).Err()
		return nil, false
	}
	return boards, true
}

// save stores boards unless the owner's generation moved past gen. The
// generation key is watched so an Invalidate landing between the check and
// the write aborts the transaction.
func (c *Cache) save(ctx context.Context, ownerID string, gen int64, boards []model.Board) {
	data, err := json.Marshal(boards)
	if err != nil {
		return
	}
	genKey := generationKey(ownerID)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, boardsCacheKey(ownerID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

func boardsCacheKey(ownerID string) string { return "kanban:boards:" + ownerID }

func generationKey(ownerID string) string { return "kanban:boards:gen:" + ownerID }
