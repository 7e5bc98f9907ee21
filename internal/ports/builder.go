package ports

import (
	"context"

	"autobuild/internal/types"
)

// PackageBuilderPort runs the native build tool in a package directory.
// Both calls must stop the tool once ctx is done.
type PackageBuilderPort interface {
	BuildBinary(ctx context.Context, dir string, kind types.SourceKind) error
	BuildSource(ctx context.Context, dir string, kind types.SourceKind) error
}
