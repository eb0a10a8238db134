package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/patrickmn/go-cache"
	"github.com/railzwaylabs/parkway/internal/account/domain"
)

// cachedDirectory memoises successful lookups. Misses are not cached so a
// freshly registered vehicle can park immediately.
type cachedDirectory struct {
	inner domain.Directory
	cache *cache.Cache
}

func NewCachedDirectory(inner domain.Directory, ttl time.Duration) domain.Directory {
	if ttl <= 0 {
		return inner
	}
	return &cachedDirectory{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *cachedDirectory) ResolveAccount(ctx context.Context, plate string) (snowflake.ID, error) {
	if v, ok := c.cache.Get(plate); ok {
		return v.(snowflake.ID), nil
	}

	accountID, err := c.inner.ResolveAccount(ctx, plate)
	if err != nil {
		return 0, err
	}
	c.cache.SetDefault(plate, accountID)
	return accountID, nil
}

func (c *cachedDirectory) Register(ctx context.Context, plate string, accountID snowflake.ID) error {
	if err := c.inner.Register(ctx, plate, accountID); err != nil {
		return err
	}
	c.cache.Delete(plate)
	return nil
}
