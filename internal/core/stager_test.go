package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autobuild/internal/types"
)

const pacmanConf = `[options]
HoldPkg = pacman
Architecture = auto

[msys]
Include = /etc/pacman.d/mirrorlist.msys
`

type stagingFixture struct {
	store  *fakeStore
	pm     *fakePackageManager
	config *fileConfig
	env    Environment
	graph  *BuildGraph
}

func newStagingFixture(t *testing.T) *stagingFixture {
	t.Helper()
	dir := t.TempDir()
	confPath := filepath.Join(dir, "pacman.conf")
	require.NoError(t, os.WriteFile(confPath, []byte(pacmanConf), 0o644))

	zlib := entry("mingw-w64-zlib", "1.3-1")
	zlib.Kind = types.SourceKindExtension
	zlib.Packages = []string{"mingw-w64-x86_64-zlib"}
	graph, err := NewBuildGraph([]types.QueueEntry{
		entry("libiconv", "1.17-1"),
		zlib,
		entry("app", "1.0-1", "libiconv", "mingw-w64-x86_64-zlib"),
	})
	require.NoError(t, err)

	store := newFakeStore()
	store.add(types.ChannelSystem, "libiconv-1.17-1.src.tar.zst", "libiconv-1.17-1-x86_64.pkg.tar.zst")
	store.add(types.ChannelExtension, "mingw-w64-x86_64-zlib-1.3-1-any.pkg.tar.zst")

	fixture := &stagingFixture{
		store:  store,
		pm:     &fakePackageManager{},
		config: &fileConfig{path: confPath},
		graph:  graph,
	}
	fixture.env = Environment{
		PackageManager: fixture.pm,
		Config:         fixture.config,
		StagingRoot:    filepath.Join(dir, "build", StagingDirName),
	}
	return fixture
}

func (f *stagingFixture) node(t *testing.T, name string) *Node {
	t.Helper()
	node, ok := f.graph.Node(name)
	require.True(t, ok)
	return node
}

func (f *stagingFixture) requireRestored(t *testing.T) {
	t.Helper()
	data, err := os.ReadFile(f.config.path)
	require.NoError(t, err)
	if diff := cmp.Diff(pacmanConf, string(data)); diff != "" {
		t.Fatalf("config not restored (-want +got):\n%s", diff)
	}
	assert.NoDirExists(t, f.env.StagingRoot)
	assert.NoFileExists(t, f.config.path+".backup")
}

func TestStagerWithStagesAndRestores(t *testing.T) {
	f := newStagingFixture(t)
	stager := NewStager(f.store)

	err := stager.With(t.Context(), f.env, f.node(t, "app"), func(context.Context) error {
		assert.FileExists(t, filepath.Join(f.env.StagingRoot, "system", "x86_64", "libiconv-1.17-1-x86_64.pkg.tar.zst"))
		assert.FileExists(t, filepath.Join(f.env.StagingRoot, "extension", "x86_64", "mingw-w64-x86_64-zlib-1.3-1-any.pkg.tar.zst"))
		data, err := os.ReadFile(f.config.path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "[autobuild-system-x86_64]")
		assert.Contains(t, string(data), "[autobuild-extension-x86_64]")
		return nil
	})
	require.NoError(t, err)

	f.requireRestored(t)
	want := []string{
		"repo-add autobuild-system-x86_64.db.tar.gz libiconv-1.17-1-x86_64.pkg.tar.zst",
		"repo-add autobuild-extension-x86_64.db.tar.gz mingw-w64-x86_64-zlib-1.3-1-any.pkg.tar.zst",
		"sync upgrade",
		"sync downgrade",
	}
	if diff := cmp.Diff(want, f.pm.calls); diff != "" {
		t.Fatalf("unexpected package manager calls (-want +got):\n%s", diff)
	}
}

func TestStagerWithRestoresAfterActionFailure(t *testing.T) {
	f := newStagingFixture(t)
	actionErr := errors.New("makepkg exploded")

	err := NewStager(f.store).With(t.Context(), f.env, f.node(t, "app"), func(context.Context) error {
		return actionErr
	})
	require.ErrorIs(t, err, actionErr)
	f.requireRestored(t)
	assert.Equal(t, "sync downgrade", f.pm.calls[len(f.pm.calls)-1])
}

func TestStagerWithRestoresAfterActionPanic(t *testing.T) {
	f := newStagingFixture(t)

	assert.PanicsWithValue(t, "makepkg crashed", func() {
		_ = NewStager(f.store).With(t.Context(), f.env, f.node(t, "app"), func(context.Context) error {
			panic("makepkg crashed")
		})
	})
	f.requireRestored(t)
	assert.Equal(t, 1, f.config.restores)
	assert.Equal(t, "sync downgrade", f.pm.calls[len(f.pm.calls)-1])
}

func TestStagerWithRestoresAfterCancellation(t *testing.T) {
	f := newStagingFixture(t)
	ctx, cancel := context.WithCancel(t.Context())

	err := NewStager(f.store).With(ctx, f.env, f.node(t, "app"), func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	f.requireRestored(t)
	require.Len(t, f.pm.ctxErrs, 2)
	assert.NoError(t, f.pm.ctxErrs[1], "downgrade must not see the cancellation")
}

func TestStagerMissingDependencyLeavesEnvironmentUntouched(t *testing.T) {
	f := newStagingFixture(t)
	f.store.assets[types.ChannelExtension] = nil
	called := false

	err := NewStager(f.store).With(t.Context(), f.env, f.node(t, "app"), func(context.Context) error {
		called = true
		return nil
	})
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "app", missing.Package)
	assert.Equal(t, "mingw-w64-x86_64-zlib-1.3-1-*.pkg.*", missing.Pattern)
	assert.False(t, called)
	assert.Empty(t, f.pm.calls)
	f.requireRestored(t)
}

func TestStagerAcquireFailureReleasesPartialState(t *testing.T) {
	f := newStagingFixture(t)
	f.pm.addErr = errors.New("repo-add failed")

	_, err := NewStager(f.store).Acquire(t.Context(), f.env, f.node(t, "app"))
	require.ErrorIs(t, err, f.pm.addErr)
	f.requireRestored(t)
	assert.Equal(t, 1, f.config.restores)
	assert.Equal(t, "sync downgrade", f.pm.calls[len(f.pm.calls)-1])
}

func TestStagedRepositoryReleaseRunsEveryStepOnce(t *testing.T) {
	f := newStagingFixture(t)
	f.config.restoreErr = errors.New("disk full")

	staged, err := NewStager(f.store).Acquire(t.Context(), f.env, f.node(t, "app"))
	require.NoError(t, err)

	err = staged.Release(t.Context())
	var restoreErr *RestoreError
	require.ErrorAs(t, err, &restoreErr)
	require.ErrorIs(t, err, f.config.restoreErr)
	assert.NoDirExists(t, f.env.StagingRoot)
	assert.Equal(t, "sync downgrade", f.pm.calls[len(f.pm.calls)-1])

	again := staged.Release(t.Context())
	assert.Same(t, err, again)
	assert.Equal(t, 1, f.config.restores)
}

func TestStagerWithoutDependencies(t *testing.T) {
	f := newStagingFixture(t)
	err := NewStager(f.store).With(t.Context(), f.env, f.node(t, "libiconv"), func(context.Context) error {
		assert.DirExists(t, f.env.StagingRoot)
		return nil
	})
	require.NoError(t, err)
	f.requireRestored(t)
	assert.Equal(t, []string{"sync upgrade", "sync downgrade"}, f.pm.calls)
	assert.Zero(t, f.store.listCalls)
}
