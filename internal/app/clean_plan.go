package app

import (
	"autobuild/internal/core"
	"autobuild/internal/types"
)

// BuildCleanPlan keeps every asset matching a retention pattern of a queue
// entry and marks the rest for deletion. Both lists keep input order.
func BuildCleanPlan(entries []types.QueueEntry, assets []types.Asset) types.AssetCleanPlan {
	var patterns []string
	for _, entry := range entries {
		patterns = append(patterns, core.RetentionPatterns(entry)...)
	}
	plan := types.AssetCleanPlan{Keep: []types.Asset{}, Delete: []types.Asset{}}
	for _, asset := range assets {
		if retained(asset.Name, patterns) {
			plan.Keep = append(plan.Keep, asset)
		} else {
			plan.Delete = append(plan.Delete, asset)
		}
	}
	return plan
}

func retained(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if core.Match(pattern, name) {
			return true
		}
	}
	return false
}
