package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autobuild/internal/app"
	"autobuild/internal/types"
)

func newShowAssetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-assets",
		Short: "Show all staging packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := newAppService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := service.ShowAssets(cmd.Context())
			if err != nil {
				return err
			}
			return printAssets(cmd.OutOrStdout(), result.Assets)
		},
	}
}

func printAssets(out io.Writer, assets []types.Asset) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "name\tsize\tcreated\tupdated")
	for _, asset := range assets {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", asset.Name, asset.Size, formatTime(asset.CreatedAt), formatTime(asset.UpdatedAt))
	}
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateTime)
}

type fetchAssetsOptions struct {
	Workers int
}

func newFetchAssetsCommand() *cobra.Command {
	opts := fetchAssetsOptions{}
	cmd := &cobra.Command{
		Use:   "fetch-assets <target-dir>",
		Short: "Download all staging packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetchAssets(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", app.DefaultFetchWorkers, "Concurrent downloads")
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func runFetchAssets(ctx context.Context, cmd *cobra.Command, target string, opts fetchAssetsOptions) error {
	service, err := newAppService(ctx)
	if err != nil {
		return err
	}
	result, err := service.FetchAssets(ctx, app.FetchAssetsRequest{
		TargetDir: target,
		Workers:   resolveInt(cmd, opts.Workers, "workers", "workers"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "downloaded: %d, skipped: %d\n", len(result.Downloaded), len(result.Skipped))
	return nil
}

type cleanAssetsOptions struct {
	DryRun bool
}

func newCleanAssetsCommand() *cobra.Command {
	opts := cleanAssetsOptions{}
	cmd := &cobra.Command{
		Use:   "clean-assets",
		Short: "Delete staging assets no longer in the build queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanAssets(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only show what is going to be deleted")
	return cmd
}

func runCleanAssets(ctx context.Context, cmd *cobra.Command, opts cleanAssetsOptions) error {
	service, err := newAppService(ctx)
	if err != nil {
		return err
	}
	result, err := service.CleanAssets(ctx, app.CleanAssetsRequest{
		DryRun: resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(result.Deleted) == 0 {
		fmt.Fprintln(out, "Nothing to delete")
		return nil
	}
	verb := "deleted"
	if result.DryRun {
		verb = "would delete"
	}
	for _, asset := range result.Deleted {
		fmt.Fprintf(out, "%s %s/%s\n", verb, asset.Channel, asset.Name)
	}
	return nil
}
