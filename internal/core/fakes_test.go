package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"autobuild/internal/types"
)

type upload struct {
	Channel types.Channel
	Name    string
	Content string
}

type fakeStore struct {
	mu          sync.Mutex
	assets      map[types.Channel][]types.Asset
	uploads     []upload
	listErr     error
	downloadErr error
	uploadErr   error
	listCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{assets: map[types.Channel][]types.Asset{}}
}

func (s *fakeStore) add(channel types.Channel, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.assets[channel] = append(s.assets[channel], types.Asset{ID: name, Name: name, Channel: channel})
	}
}

func (s *fakeStore) List(_ context.Context, channel types.Channel) ([]types.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return slices.Clone(s.assets[channel]), nil
}

func (s *fakeStore) Download(_ context.Context, asset types.Asset, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("package "+asset.Name), 0o644)
}

func (s *fakeStore) Upload(_ context.Context, channel types.Channel, path string, replace bool) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(path)
	if replace {
		s.assets[channel] = slices.DeleteFunc(s.assets[channel], func(asset types.Asset) bool {
			return asset.Name == name
		})
	}
	s.assets[channel] = append(s.assets[channel], types.Asset{ID: name, Name: name, Channel: channel, Size: int64(len(content))})
	s.uploads = append(s.uploads, upload{Channel: channel, Name: name, Content: string(content)})
	return nil
}

func (s *fakeStore) Delete(_ context.Context, asset types.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Channel] = slices.DeleteFunc(s.assets[asset.Channel], func(item types.Asset) bool {
		return item.Name == asset.Name
	})
	return nil
}

func (s *fakeStore) Trigger(context.Context, string) error { return nil }

type fakePackageManager struct {
	calls   []string
	ctxErrs []error
	syncErr map[types.SyncMode]error
	addErr  error
}

func (m *fakePackageManager) Sync(ctx context.Context, mode types.SyncMode) error {
	m.calls = append(m.calls, "sync "+string(mode))
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return m.syncErr[mode]
}

func (m *fakePackageManager) RepoAdd(_ context.Context, dbPath string, packagePath string) error {
	m.calls = append(m.calls, fmt.Sprintf("repo-add %s %s", filepath.Base(dbPath), filepath.Base(packagePath)))
	return m.addErr
}

func (m *fakePackageManager) RepositoryURI(dir string) string {
	return "file://" + filepath.ToSlash(dir)
}

// fileConfig edits a real file so tests can compare bytes after a
// staging cycle.
type fileConfig struct {
	path       string
	restoreErr error
	restores   int
}

func (c *fileConfig) Backup() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path+".backup", data, 0o644)
}

func (c *fileConfig) AddRepository(name string, serverURI string) error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	if strings.Contains(string(data), serverURI) {
		return nil
	}
	stanza := fmt.Sprintf("[%s]\nServer = %s\nSigLevel = Never\n\n", name, serverURI)
	return os.WriteFile(c.path, append([]byte(stanza), data...), 0o644)
}

func (c *fileConfig) Restore() error {
	c.restores++
	if c.restoreErr != nil {
		return c.restoreErr
	}
	return os.Rename(c.path+".backup", c.path)
}

type fakeSources struct {
	prepared   []string
	cleaned    []string
	prepareErr error
	cleanErr   error
}

func (s *fakeSources) Prepare(_ context.Context, url string, path string) error {
	s.prepared = append(s.prepared, url)
	if s.prepareErr != nil {
		return s.prepareErr
	}
	return os.MkdirAll(path, 0o755)
}

func (s *fakeSources) Clean(_ context.Context, path string) error {
	s.cleaned = append(s.cleaned, path)
	return s.cleanErr
}

type buildFunc func(ctx context.Context, dir string, kind types.SourceKind) error

type fakeBuilder struct {
	binary buildFunc
	source buildFunc
	calls  []string
}

func (b *fakeBuilder) BuildBinary(ctx context.Context, dir string, kind types.SourceKind) error {
	b.calls = append(b.calls, "binary "+filepath.Base(dir))
	if b.binary != nil {
		return b.binary(ctx, dir, kind)
	}
	return nil
}

func (b *fakeBuilder) BuildSource(ctx context.Context, dir string, kind types.SourceKind) error {
	b.calls = append(b.calls, "source "+filepath.Base(dir))
	if b.source != nil {
		return b.source(ctx, dir, kind)
	}
	return nil
}

// writeOutputs is a build func producing one package file per name.
func writeOutputs(files ...string) buildFunc {
	return func(_ context.Context, dir string, _ types.SourceKind) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for _, file := range files {
			if err := os.WriteFile(filepath.Join(dir, file), []byte(file), 0o644); err != nil {
				return err
			}
		}
		return nil
	}
}

var errToolFailed = errors.New("exit status 1")

func entry(name string, version string, depends ...string) types.QueueEntry {
	return types.QueueEntry{
		Name:     name,
		Version:  version,
		RepoURL:  "https://example.com/MSYS2-packages",
		RepoPath: name,
		Repo:     "MSYS2-packages",
		Kind:     types.SourceKindSystem,
		Packages: []string{name},
		Depends:  depends,
	}
}
