package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/ports"
	"autobuild/internal/types"
)

// StagingDirName is the staging root's name inside the build directory.
const StagingDirName = "_REPO"

// Environment is the process-wide package manager state a stager mutates.
// Only one staged repository may be held per environment at a time.
type Environment struct {
	PackageManager ports.PackageManagerPort
	Config         ports.PackageConfigPort
	StagingRoot    string
}

type Stager struct {
	store ports.ArtifactStorePort
}

func NewStager(store ports.ArtifactStorePort) Stager {
	return Stager{store: store}
}

type stagedAsset struct {
	channel types.Channel
	asset   types.Asset
}

// StagedRepository holds the local repository built for one package. Its
// Release undoes every change Acquire made to the environment.
type StagedRepository struct {
	env      Environment
	backedUp bool
	once     sync.Once
	err      error
	Repos    []string
}

// With stages the node's dependencies, runs fn and releases the staging on
// every exit from fn, including a panic. Release failures are joined to
// fn's error.
func (s Stager) With(ctx context.Context, env Environment, node *Node, fn func(ctx context.Context) error) (err error) {
	staged, err := s.Acquire(ctx, env, node)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, staged.Release(ctx))
	}()
	return fn(ctx)
}

// Acquire resolves an artifact for every dependency of node, places them
// into a fresh local repository registered with the package manager and
// upgrades the installed state to it. Dependency lookups happen before the
// environment is touched, so a MissingDependencyError leaves it unchanged.
// A failure after that point releases the partial staging.
func (s Stager) Acquire(ctx context.Context, env Environment, node *Node) (*StagedRepository, error) {
	assert.NotEmpty(ctx, env.StagingRoot, "staging root must be set")
	selected, err := s.selectAssets(ctx, node)
	if err != nil {
		return nil, err
	}

	staged := &StagedRepository{env: env}
	if err := s.populate(ctx, staged, selected); err != nil {
		return nil, errors.Join(err, staged.Release(ctx))
	}
	log.Ctx(ctx).Debug().
		Str("package", node.Name()).
		Int("dependencies", len(selected)).
		Strs("repos", staged.Repos).
		Msg("dependencies staged")
	return staged, nil
}

func (s Stager) selectAssets(ctx context.Context, node *Node) ([]stagedAsset, error) {
	listings := map[types.Channel][]types.Asset{}
	selected := make([]stagedAsset, 0, len(node.Dependencies))
	for _, edge := range node.Dependencies {
		channel := types.ChannelForKind(edge.Node.Entry.Kind)
		assets, ok := listings[channel]
		if !ok {
			listed, err := s.store.List(ctx, channel)
			if err != nil {
				return nil, err
			}
			listings[channel] = listed
			assets = listed
		}
		pattern := StagingPattern(edge.Name, edge.Node.Entry.Version)
		found := false
		for _, asset := range assets {
			if Match(pattern, asset.Name) {
				selected = append(selected, stagedAsset{channel: channel, asset: asset})
				found = true
				break
			}
		}
		if !found {
			return nil, &MissingDependencyError{Package: node.Name(), Pattern: pattern}
		}
	}
	return selected, nil
}

func (s Stager) populate(ctx context.Context, staged *StagedRepository, selected []stagedAsset) error {
	env := staged.env
	if err := os.RemoveAll(env.StagingRoot); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clear staging root").
			WithCause(err)
	}
	if err := os.MkdirAll(env.StagingRoot, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create staging root").
			WithCause(err)
	}
	if err := env.Config.Backup(); err != nil {
		return err
	}
	staged.backedUp = true

	for _, item := range selected {
		if err := s.stage(ctx, staged, item); err != nil {
			return err
		}
	}
	// Already installed dependencies must be upgraded to the staged builds.
	return env.PackageManager.Sync(ctx, types.SyncUpgrade)
}

func (s Stager) stage(ctx context.Context, staged *StagedRepository, item stagedAsset) error {
	env := staged.env
	subdir, err := RepoSubdir(item.channel, item.asset.Name)
	if err != nil {
		return err
	}
	repoDir := filepath.Join(env.StagingRoot, filepath.FromSlash(subdir))
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", repoDir)).
			WithCause(err)
	}
	packagePath := filepath.Join(repoDir, item.asset.Name)
	log.Ctx(ctx).Info().Str("asset", item.asset.Name).Msg("downloading dependency")
	if err := s.store.Download(ctx, item.asset, packagePath); err != nil {
		return err
	}
	name := RepoName(subdir)
	if err := env.Config.AddRepository(name, env.PackageManager.RepositoryURI(repoDir)); err != nil {
		return err
	}
	if err := env.PackageManager.RepoAdd(ctx, filepath.Join(repoDir, RepoDBName(subdir)), packagePath); err != nil {
		return err
	}
	if !slices.Contains(staged.Repos, name) {
		staged.Repos = append(staged.Repos, name)
	}
	return nil
}

// Release removes the staging root, restores the package manager
// configuration and downgrades the installed state to the unstaged
// repositories. Every step runs even when an earlier one fails and even when
// ctx is already cancelled. Calling Release again returns the first result.
func (r *StagedRepository) Release(ctx context.Context) error {
	r.once.Do(func() {
		ctx = context.WithoutCancel(ctx)
		logger := log.Ctx(ctx)
		var errs []error
		if err := os.RemoveAll(r.env.StagingRoot); err != nil {
			logger.Error().Err(err).Str("path", r.env.StagingRoot).Msg("failed to remove staging root")
			errs = append(errs, err)
		}
		if r.backedUp {
			if err := r.env.Config.Restore(); err != nil {
				logger.Error().Err(err).Msg("failed to restore package manager config")
				errs = append(errs, err)
			}
		}
		if err := r.env.PackageManager.Sync(ctx, types.SyncDowngrade); err != nil {
			logger.Error().Err(err).Msg("failed to downgrade to unstaged packages")
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			r.err = &RestoreError{Op: "release staged repository", Cause: errors.Join(errs...)}
		}
	})
	return r.err
}
