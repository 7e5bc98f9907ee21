package ports

import (
	"context"

	"autobuild/internal/types"
)

type CommandPort interface {
	Run(ctx context.Context, cmd types.Command) error
}

// EnvironmentCheckPort verifies that an external tool is usable before a
// run starts.
type EnvironmentCheckPort interface {
	Check(ctx context.Context) error
}
