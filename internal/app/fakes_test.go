package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"autobuild/internal/adapters"
	"autobuild/internal/core"
	"autobuild/internal/types"
)

type fakeQueue struct {
	entries []types.QueueEntry
	err     error
}

func (q fakeQueue) Fetch(context.Context) ([]types.QueueEntry, error) {
	return q.entries, q.err
}

type memStore struct {
	mu       sync.Mutex
	assets   map[types.Channel][]types.Asset
	deleted  []string
	events   []string
	listErr  error
	download func(asset types.Asset) error
}

func newMemStore() *memStore {
	return &memStore{assets: map[types.Channel][]types.Asset{}}
}

func assetContent(name string) string {
	return "package " + name
}

func (s *memStore) add(channel types.Channel, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.assets[channel] = append(s.assets[channel], types.Asset{
			ID:      string(channel) + "/" + name,
			Name:    name,
			Size:    int64(len(assetContent(name))),
			Channel: channel,
		})
	}
}

func (s *memStore) names(channel types.Channel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.AssetNames(s.assets[channel])
}

func (s *memStore) List(_ context.Context, channel types.Channel) ([]types.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return slices.Clone(s.assets[channel]), nil
}

func (s *memStore) Download(_ context.Context, asset types.Asset, destPath string) error {
	if s.download != nil {
		if err := s.download(asset); err != nil {
			return err
		}
	}
	return os.WriteFile(destPath, []byte(assetContent(asset.Name)), 0o644)
}

func (s *memStore) Upload(_ context.Context, channel types.Channel, path string, replace bool) error {
	name := filepath.Base(path)
	if replace {
		s.mu.Lock()
		s.assets[channel] = slices.DeleteFunc(s.assets[channel], func(asset types.Asset) bool {
			return asset.Name == name
		})
		s.mu.Unlock()
	}
	s.add(channel, name)
	return nil
}

func (s *memStore) Delete(_ context.Context, asset types.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Channel] = slices.DeleteFunc(s.assets[asset.Channel], func(candidate types.Asset) bool {
		return candidate.Name == asset.Name
	})
	s.deleted = append(s.deleted, asset.Name)
	return nil
}

func (s *memStore) Trigger(_ context.Context, event string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

type fakeCheck struct {
	err   error
	calls int
}

func (c *fakeCheck) Check(context.Context) error {
	c.calls++
	return c.err
}

type fakeSources struct {
	prepared []string
	cleaned  []string
}

func (s *fakeSources) Prepare(_ context.Context, _ string, path string) error {
	s.prepared = append(s.prepared, path)
	return os.MkdirAll(path, 0o755)
}

func (s *fakeSources) Clean(_ context.Context, path string) error {
	s.cleaned = append(s.cleaned, path)
	return nil
}

type fakePackageManager struct {
	syncs []types.SyncMode
	added []string
}

func (m *fakePackageManager) Sync(_ context.Context, mode types.SyncMode) error {
	m.syncs = append(m.syncs, mode)
	return nil
}

func (m *fakePackageManager) RepoAdd(_ context.Context, _ string, packagePath string) error {
	m.added = append(m.added, filepath.Base(packagePath))
	return nil
}

func (m *fakePackageManager) RepositoryURI(dir string) string {
	return "file://" + filepath.ToSlash(dir)
}

var errMakepkg = errors.New("makepkg exited with status 4")

// fakeBuilder writes a package named after the package directory, which
// the tests lay out as <name>-<version>.
type fakeBuilder struct {
	fail []string
}

func (b fakeBuilder) BuildBinary(_ context.Context, dir string, _ types.SourceKind) error {
	base := filepath.Base(dir)
	for _, name := range b.fail {
		if strings.HasPrefix(base, name+"-") {
			return errMakepkg
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+"-x86_64.pkg.tar.zst"), []byte("binary"), 0o644)
}

func (b fakeBuilder) BuildSource(_ context.Context, dir string, _ types.SourceKind) error {
	return os.WriteFile(filepath.Join(dir, filepath.Base(dir)+".src.tar.gz"), []byte("source"), 0o644)
}

const testPacmanConf = "[options]\nArchitecture = auto\n\n[msys]\nInclude = /etc/pacman.d/mirrorlist.msys\n"

type testEnv struct {
	service  Service
	store    *memStore
	sources  *fakeSources
	manager  *fakePackageManager
	shell    *fakeCheck
	git      *fakeCheck
	root     string
	buildDir string
	confPath string
}

func newTestEnv(t *testing.T, entries []types.QueueEntry, builder fakeBuilder) *testEnv {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	confPath := filepath.Join(root, "etc", "pacman.conf")
	require.NoError(t, os.WriteFile(confPath, []byte(testPacmanConf), 0o644))
	env := &testEnv{
		store:    newMemStore(),
		sources:  &fakeSources{},
		manager:  &fakePackageManager{},
		shell:    &fakeCheck{},
		git:      &fakeCheck{},
		root:     root,
		buildDir: t.TempDir(),
		confPath: confPath,
	}
	env.service = Service{
		Queue:       fakeQueue{entries: entries},
		Store:       env.store,
		Sources:     env.sources,
		SourceCheck: env.git,
		Reports:     adapters.NewReportFileAdapter(),
		Toolchain: func(root string) Toolchain {
			return Toolchain{
				Shell:          env.shell,
				PackageManager: env.manager,
				Config:         adapters.NewPacmanConfAdapter(root),
				Builder:        builder,
			}
		},
		Classifier: core.NewClassifier(core.DefaultSkip),
	}
	return env
}

// entry describes a system package built from MSYS2-packages/<name>-<version>.
func entry(name string, version string, depends ...string) types.QueueEntry {
	return types.QueueEntry{
		Name:     name,
		Version:  version,
		RepoURL:  "https://github.com/msys2/MSYS2-packages",
		RepoPath: name + "-" + version,
		Repo:     "MSYS2-packages",
		Kind:     types.SourceKindSystem,
		Packages: []string{name},
		Depends:  depends,
	}
}
