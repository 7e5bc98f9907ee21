package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"autobuild/internal/types"
)

// CleanAssets deletes published assets, failure markers included, that
// no longer belong to any entry of the build queue.
func (s Service) CleanAssets(ctx context.Context, req CleanAssetsRequest) (CleanAssetsResult, error) {
	entries, err := s.Queue.Fetch(ctx)
	if err != nil {
		return CleanAssetsResult{}, err
	}
	var assets []types.Asset
	for _, channel := range types.AllChannels {
		listed, err := s.Store.List(ctx, channel)
		if err != nil {
			return CleanAssetsResult{}, err
		}
		assets = append(assets, listed...)
	}
	plan := BuildCleanPlan(entries, assets)
	if req.DryRun {
		for _, asset := range plan.Delete {
			log.Ctx(ctx).Info().Str("asset", asset.Name).Str("channel", string(asset.Channel)).Msg("would delete")
		}
		return CleanAssetsResult{Keep: plan.Keep, Deleted: plan.Delete, DryRun: true}, nil
	}
	deleted := []types.Asset{}
	for _, asset := range plan.Delete {
		log.Ctx(ctx).Info().Str("asset", asset.Name).Str("channel", string(asset.Channel)).Msg("deleting")
		if err := s.Store.Delete(ctx, asset); err != nil {
			return CleanAssetsResult{Keep: plan.Keep, Deleted: deleted}, err
		}
		deleted = append(deleted, asset)
	}
	return CleanAssetsResult{Keep: plan.Keep, Deleted: deleted}, nil
}
