package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autobuild/internal/adapters"
	"autobuild/internal/app"
	"autobuild/internal/core"
	"autobuild/internal/types"
)

func setConfigDefaults() {
	viper.SetDefault("store_backend", app.BackendGitHub)
	viper.SetDefault("repo", adapters.DefaultArtifactRepo)
	viper.SetDefault("github_api_url", adapters.DefaultGitHubAPIURL)
	viper.SetDefault("queue_url", adapters.DefaultQueueURL)
	viper.SetDefault("system_repo_prefix", adapters.DefaultSystemRepoPrefix)
	viper.SetDefault("skip", core.DefaultSkip)
	viper.SetDefault("build_timeout", core.DefaultBuildTimeout)
	viper.SetDefault("trusted_login", adapters.DefaultTrustedLogin)
	viper.SetDefault("trusted_type", adapters.DefaultTrustedType)
	viper.SetDefault("workers", app.DefaultFetchWorkers)
	viper.SetDefault("s3_bucket", "autobuild")
	viper.SetDefault("s3_use_ssl", true)
}

// loadAppConfig collects the global settings shared by every subcommand.
// Persistent flags are bound to viper, so viper already prefers them.
func loadAppConfig() app.Config {
	return app.Config{
		Store: app.StoreConfig{
			Backend:      viper.GetString("store_backend"),
			GitHubAPIURL: viper.GetString("github_api_url"),
			Repo:         viper.GetString("repo"),
			Credentials:  app.CredentialsFromEnv(os.Getenv),
			Trusted: types.Identity{
				Login: viper.GetString("trusted_login"),
				Type:  viper.GetString("trusted_type"),
			},
			S3: adapters.S3StoreOptions{
				Endpoint:  viper.GetString("s3_endpoint"),
				Region:    viper.GetString("s3_region"),
				AccessKey: viper.GetString("s3_access_key"),
				SecretKey: viper.GetString("s3_secret_key"),
				Bucket:    viper.GetString("s3_bucket"),
				UseSSL:    viper.GetBool("s3_use_ssl"),
			},
			Publish:       viper.GetBool("publish"),
			ListCacheSize: viper.GetInt("list_cache_size"),
			Timeout:       viper.GetDuration("http_timeout"),
		},
		QueueURL:         viper.GetString("queue_url"),
		SystemRepoPrefix: viper.GetString("system_repo_prefix"),
		Skip:             viper.GetStringSlice("skip"),
	}
}

func newAppService(ctx context.Context) (app.Service, error) {
	return app.NewService(ctx, loadAppConfig())
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveDuration(cmd *cobra.Command, value time.Duration, key string, flagName string) time.Duration {
	if cmd == nil {
		if value != 0 {
			return value
		}
		return viper.GetDuration(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetDuration(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
