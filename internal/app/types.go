package app

import (
	"time"

	"autobuild/internal/adapters"
	"autobuild/internal/types"
)

const (
	BackendGitHub = "github"
	BackendS3     = "s3"

	DefaultEvent        = "manual-build"
	DefaultFetchWorkers = 4
)

type StoreConfig struct {
	Backend       string
	GitHubAPIURL  string
	Repo          string
	Credentials   adapters.GitHubCredentials
	Trusted       types.Identity
	S3            adapters.S3StoreOptions
	Publish       bool
	ListCacheSize int
	Timeout       time.Duration
}

type Config struct {
	Store            StoreConfig
	QueueURL         string
	SystemRepoPrefix string
	Skip             []string
}

type BuildRequest struct {
	MSYS2Root  string
	BuildDir   string
	Timeout    time.Duration
	ReportPath string
}

type BuildResult struct {
	Classification types.Classification
	Run            types.RunReport
}

type ShowRequest struct {
	ReportPath string
}

type ShowResult struct {
	Classification types.Classification
}

type ShowAssetsResult struct {
	Assets []types.Asset
}

type FetchAssetsRequest struct {
	TargetDir string
	Workers   int
}

type FetchAssetsResult struct {
	Downloaded []string
	Skipped    []string
	// Mismatched lists existing files kept although their size differs
	// from the published asset.
	Mismatched []string
}

type CleanAssetsRequest struct {
	DryRun bool
}

type CleanAssetsResult struct {
	Keep    []types.Asset
	Deleted []types.Asset
	DryRun  bool
}

type TriggerRequest struct {
	Event string
}
