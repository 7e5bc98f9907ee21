package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"autobuild/internal/adapters"
	"autobuild/internal/ports"
)

// CredentialsFromEnv reads GITHUB_TOKEN, or GITHUB_USER and GITHUB_PASS.
// A token wins when both are set.
func CredentialsFromEnv(getenv func(string) string) adapters.GitHubCredentials {
	if token := strings.TrimSpace(getenv("GITHUB_TOKEN")); token != "" {
		return adapters.GitHubCredentials{Token: token}
	}
	return adapters.GitHubCredentials{
		Username: strings.TrimSpace(getenv("GITHUB_USER")),
		Password: getenv("GITHUB_PASS"),
	}
}

// NewArtifactStore builds the configured backend behind a listing cache.
// For the github backend publishing is enabled only when the credentials
// authenticate as the trusted identity.
func NewArtifactStore(ctx context.Context, cfg StoreConfig) (ports.ArtifactStorePort, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendGitHub
	}
	var store ports.ArtifactStorePort
	switch backend {
	case BackendGitHub:
		if cfg.Credentials.Empty() {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("'GITHUB_TOKEN' or 'GITHUB_USER'/'GITHUB_PASS' env vars not set")
		}
		github := adapters.NewGitHubStoreAdapter(adapters.GitHubStoreOptions{
			APIURL:      cfg.GitHubAPIURL,
			Repo:        cfg.Repo,
			Credentials: cfg.Credentials,
			Trusted:     cfg.Trusted,
			Timeout:     cfg.Timeout,
		})
		identity, err := github.CurrentIdentity(ctx)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("failed to look up the authenticated github user").
				WithCause(err)
		}
		github.PublishEnabled = identity.Equal(github.Trusted)
		if !github.PublishEnabled {
			log.Ctx(ctx).Warn().
				Str("login", identity.Login).
				Str("trusted", github.Trusted.Login).
				Msg("not authenticated as the trusted identity, uploads are disabled")
		}
		store = github
	case BackendS3:
		opts := cfg.S3
		opts.Trusted = cfg.Trusted
		opts.PublishEnabled = cfg.Publish
		s3, err := adapters.NewS3StoreAdapter(opts)
		if err != nil {
			return nil, err
		}
		store = s3
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported store backend %q", cfg.Backend))
	}
	cached, err := adapters.NewCachedArtifactStore(store, cfg.ListCacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
