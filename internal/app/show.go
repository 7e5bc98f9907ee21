package app

import (
	"context"

	"autobuild/internal/core"
	"autobuild/internal/types"
)

// Show classifies the current build queue without building anything.
func (s Service) Show(ctx context.Context, req ShowRequest) (ShowResult, error) {
	_, classification, err := s.classify(ctx)
	if err != nil {
		return ShowResult{}, err
	}
	if req.ReportPath != "" {
		if err := s.Reports.Write(req.ReportPath, types.Report{Classification: classification}); err != nil {
			return ShowResult{}, err
		}
	}
	return ShowResult{Classification: classification}, nil
}

func (s Service) classify(ctx context.Context) (*core.BuildGraph, types.Classification, error) {
	entries, err := s.Queue.Fetch(ctx)
	if err != nil {
		return nil, types.Classification{}, err
	}
	graph, err := core.NewBuildGraph(entries)
	if err != nil {
		return nil, types.Classification{}, err
	}
	var artifactNames []string
	for _, channel := range types.ArtifactChannels {
		assets, err := s.Store.List(ctx, channel)
		if err != nil {
			return nil, types.Classification{}, err
		}
		artifactNames = append(artifactNames, types.AssetNames(assets)...)
	}
	failed, err := s.Store.List(ctx, types.ChannelFailed)
	if err != nil {
		return nil, types.Classification{}, err
	}
	classification := s.Classifier.Classify(ctx, graph, artifactNames, types.AssetNames(failed))
	return graph, classification, nil
}
