package adapters

import (
	"context"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

const defaultListCacheSize = 8

// CachedArtifactStore remembers verified channel listings. Listings are
// dropped whenever the channel is written to, so a cached listing is never
// older than this process's own changes.
type CachedArtifactStore struct {
	next  ports.ArtifactStorePort
	cache *lru.Cache[types.Channel, []types.Asset]
}

func NewCachedArtifactStore(next ports.ArtifactStorePort, size int) (*CachedArtifactStore, error) {
	if size <= 0 {
		size = defaultListCacheSize
	}
	cache, err := lru.New[types.Channel, []types.Asset](size)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create listing cache").
			WithCause(err)
	}
	return &CachedArtifactStore{next: next, cache: cache}, nil
}

func (c *CachedArtifactStore) List(ctx context.Context, channel types.Channel) ([]types.Asset, error) {
	if assets, ok := c.cache.Get(channel); ok {
		log.Ctx(ctx).Debug().Str("channel", string(channel)).Msg("listing served from cache")
		return slices.Clone(assets), nil
	}
	assets, err := c.next.List(ctx, channel)
	if err != nil {
		return nil, err
	}
	c.cache.Add(channel, slices.Clone(assets))
	return assets, nil
}

func (c *CachedArtifactStore) Download(ctx context.Context, asset types.Asset, destPath string) error {
	return c.next.Download(ctx, asset, destPath)
}

func (c *CachedArtifactStore) Upload(ctx context.Context, channel types.Channel, path string, replace bool) error {
	defer c.cache.Remove(channel)
	return c.next.Upload(ctx, channel, path, replace)
}

func (c *CachedArtifactStore) Delete(ctx context.Context, asset types.Asset) error {
	defer c.cache.Remove(asset.Channel)
	return c.next.Delete(ctx, asset)
}

func (c *CachedArtifactStore) Trigger(ctx context.Context, event string) error {
	return c.next.Trigger(ctx, event)
}

var _ ports.ArtifactStorePort = (*CachedArtifactStore)(nil)
