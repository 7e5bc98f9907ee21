package ports

import (
	"context"

	"autobuild/internal/types"
)

type PackageManagerPort interface {
	Sync(ctx context.Context, mode types.SyncMode) error
	// RepoAdd adds the package file to the repository index at dbPath,
	// creating the index if needed.
	RepoAdd(ctx context.Context, dbPath string, packagePath string) error
	// RepositoryURI returns the server URI the package manager uses to
	// reach a local directory.
	RepositoryURI(dir string) string
}

// PackageConfigPort edits the package manager configuration file. Every
// mutation between Backup and Restore is undone byte for byte by Restore.
type PackageConfigPort interface {
	Backup() error
	AddRepository(name string, serverURI string) error
	Restore() error
}
