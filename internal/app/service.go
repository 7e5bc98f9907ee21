package app

import (
	"context"
	"time"

	"autobuild/internal/adapters"
	"autobuild/internal/core"
	"autobuild/internal/ports"
)

// Toolchain is the set of native tools bound to one MSYS2 root.
type Toolchain struct {
	Shell          ports.EnvironmentCheckPort
	PackageManager ports.PackageManagerPort
	Config         ports.PackageConfigPort
	Builder        ports.PackageBuilderPort
}

type Service struct {
	Queue       ports.BuildQueuePort
	Store       ports.ArtifactStorePort
	Sources     ports.SourceTreePort
	SourceCheck ports.EnvironmentCheckPort
	Reports     ports.ReportWriterPort
	Toolchain   func(root string) Toolchain
	Classifier  core.Classifier
	Clock       func() time.Time
}

// NewService wires the production adapters. Building the artifact store
// talks to the store backend once, see NewArtifactStore.
func NewService(ctx context.Context, cfg Config) (Service, error) {
	store, err := NewArtifactStore(ctx, cfg.Store)
	if err != nil {
		return Service{}, err
	}
	skip := cfg.Skip
	if skip == nil {
		skip = core.DefaultSkip
	}
	git := adapters.NewGitSourceTreeAdapter()
	return Service{
		Queue:       adapters.NewBuildQueueHTTPAdapter(cfg.QueueURL, cfg.SystemRepoPrefix, cfg.Store.Timeout),
		Store:       store,
		Sources:     git,
		SourceCheck: git,
		Reports:     adapters.NewReportFileAdapter(),
		Toolchain:   NativeToolchain,
		Classifier:  core.NewClassifier(skip),
		Clock:       time.Now,
	}, nil
}

// NativeToolchain runs pacman, repo-add and makepkg through the login
// shell of the MSYS2 installation at root.
func NativeToolchain(root string) Toolchain {
	shell := adapters.NewMSYS2ShellAdapter(root)
	return Toolchain{
		Shell:          shell,
		PackageManager: adapters.NewPacmanAdapter(shell),
		Config:         adapters.NewPacmanConfAdapter(root),
		Builder:        adapters.NewMakepkgAdapter(shell),
	}
}
