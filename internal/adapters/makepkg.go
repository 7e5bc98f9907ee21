package adapters

import (
	"context"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

var (
	makepkgCommonFlags = []string{"--noconfirm", "--noprogressbar", "--skippgpcheck"}
	makepkgBinaryFlags = []string{"--nocheck", "--syncdeps", "--rmdeps", "--cleanbuild"}
	makepkgSourceFlags = []string{"--allsource"}
)

// MakepkgAdapter builds packages with makepkg for system packages and
// makepkg-mingw for extension packages.
type MakepkgAdapter struct {
	Shell ports.CommandPort
}

func NewMakepkgAdapter(shell ports.CommandPort) MakepkgAdapter {
	return MakepkgAdapter{Shell: shell}
}

func (a MakepkgAdapter) BuildBinary(ctx context.Context, dir string, kind types.SourceKind) error {
	return a.Shell.Run(ctx, types.Command{
		Dir:  dir,
		Args: makepkgArgs(kind, makepkgBinaryFlags),
	})
}

func (a MakepkgAdapter) BuildSource(ctx context.Context, dir string, kind types.SourceKind) error {
	var env map[string]string
	if kind != types.SourceKindSystem {
		env = map[string]string{"MINGW_INSTALLS": "mingw64"}
	}
	return a.Shell.Run(ctx, types.Command{
		Dir:  dir,
		Env:  env,
		Args: makepkgArgs(kind, makepkgSourceFlags),
	})
}

func makepkgArgs(kind types.SourceKind, flags []string) []string {
	tool := "makepkg-mingw"
	if kind == types.SourceKindSystem {
		tool = "makepkg"
	}
	args := append([]string{tool}, makepkgCommonFlags...)
	return append(args, flags...)
}

var _ ports.PackageBuilderPort = MakepkgAdapter{}
