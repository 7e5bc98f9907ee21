package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"autobuild/internal/core"
	"autobuild/internal/types"
)

// ShowAssets lists the published packages and source archives.
func (s Service) ShowAssets(ctx context.Context) (ShowAssetsResult, error) {
	var all []types.Asset
	for _, channel := range types.ArtifactChannels {
		assets, err := s.Store.List(ctx, channel)
		if err != nil {
			return ShowAssetsResult{}, err
		}
		all = append(all, assets...)
	}
	core.SortAssets(all)
	return ShowAssetsResult{Assets: all}, nil
}

type fetchJob struct {
	asset types.Asset
	dest  string
}

// FetchAssets mirrors the published packages into the local repository
// layout under TargetDir. Files that already exist are never downloaded
// again.
func (s Service) FetchAssets(ctx context.Context, req FetchAssetsRequest) (FetchAssetsResult, error) {
	target := strings.TrimSpace(req.TargetDir)
	if target == "" {
		return FetchAssetsResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("target directory is required")
	}
	workers := req.Workers
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}

	result := FetchAssetsResult{Downloaded: []string{}, Skipped: []string{}, Mismatched: []string{}}
	var jobs []fetchJob
	for _, channel := range types.ArtifactChannels {
		assets, err := s.Store.List(ctx, channel)
		if err != nil {
			return FetchAssetsResult{}, err
		}
		for _, asset := range assets {
			subdir, err := core.RepoSubdir(channel, asset.Name)
			if err != nil {
				return FetchAssetsResult{}, err
			}
			dir := filepath.Join(target, filepath.FromSlash(subdir))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return FetchAssetsResult{}, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to create %s", dir)).
					WithCause(err)
			}
			dest := filepath.Join(dir, asset.Name)
			info, err := os.Stat(dest)
			switch {
			case err == nil:
				if info.Size() != asset.Size {
					log.Ctx(ctx).Warn().Str("path", dest).Int64("size", info.Size()).Int64("expected", asset.Size).
						Msg("already exists but has a different size")
					result.Mismatched = append(result.Mismatched, asset.Name)
				}
				result.Skipped = append(result.Skipped, asset.Name)
				continue
			case !errors.Is(err, os.ErrNotExist):
				return FetchAssetsResult{}, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to inspect %s", dest)).
					WithCause(err)
			}
			jobs = append(jobs, fetchJob{asset: asset, dest: dest})
		}
	}
	log.Ctx(ctx).Info().Int("downloading", len(jobs)).Int("skipped", len(result.Skipped)).Msg("fetching assets")

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, job := range jobs {
		group.Go(func() error {
			if err := s.Store.Download(groupCtx, job.asset, job.dest); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			result.Downloaded = append(result.Downloaded, job.asset.Name)
			log.Ctx(ctx).Info().Msgf("[%d/%d] %s", len(result.Downloaded), len(jobs), job.asset.Name)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return result, err
	}
	return result, nil
}
