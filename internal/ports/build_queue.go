package ports

import (
	"context"

	"autobuild/internal/types"
)

type BuildQueuePort interface {
	Fetch(ctx context.Context) ([]types.QueueEntry, error)
}
