package ports

import (
	"context"

	"autobuild/internal/types"
)

// ArtifactStorePort is the remote store holding published packages and
// failure markers, grouped by channel.
type ArtifactStorePort interface {
	// List returns every asset in the channel. Implementations must fail
	// the whole call when any asset was not published by the trusted
	// identity; untrusted assets are never filtered out silently.
	List(ctx context.Context, channel types.Channel) ([]types.Asset, error)
	Download(ctx context.Context, asset types.Asset, destPath string) error
	// Upload publishes the file at path. With replace set, a same-named
	// asset in the channel is deleted first. Upload is a logged no-op when
	// publishing is disabled for the client.
	Upload(ctx context.Context, channel types.Channel, path string, replace bool) error
	Delete(ctx context.Context, asset types.Asset) error
	Trigger(ctx context.Context, event string) error
}
