package ports

import "context"

// SourceTreePort manages the version-controlled package source checkouts.
type SourceTreePort interface {
	// Prepare clones url into path, or resets an existing checkout to the
	// tip of the remote default branch.
	Prepare(ctx context.Context, url string, path string) error
	// Clean removes untracked files and resets tracked ones.
	Clean(ctx context.Context, path string) error
}
