package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autobuild/internal/app"
)

type buildOptions struct {
	Timeout time.Duration
	Report  string
}

func newBuildCommand() *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <msys2-root> <build-dir>",
		Short: "Build all packages that are ready to be built",
		Long: "Build every queued package that is neither published nor blocked, using the MSYS2 " +
			"installation at msys2-root (e.g. C:\\msys64). build-dir keeps the git checkouts and " +
			"temporary build results.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd, args[0], args[1], opts)
		},
	}
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Total build time budget (default 5h)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write a YAML run report to this path")
	_ = viper.BindPFlag("build_timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, root string, buildDir string, opts buildOptions) error {
	service, err := newAppService(ctx)
	if err != nil {
		return err
	}
	result, err := service.Build(ctx, app.BuildRequest{
		MSYS2Root:  root,
		BuildDir:   buildDir,
		Timeout:    resolveDuration(cmd, opts.Timeout, "build_timeout", "timeout"),
		ReportPath: resolveString(cmd, opts.Report, "report", "report"),
	})
	if err != nil {
		return err
	}
	run := result.Run
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "built: %d, failed: %d, missing dependencies: %d\n", len(run.Built), len(run.Failed), len(run.MissingDeps))
	if len(run.Failed) > 0 {
		fmt.Fprintf(out, "failed: %s\n", strings.Join(run.Failed, ", "))
	}
	if len(run.MissingDeps) > 0 {
		fmt.Fprintf(out, "missing dependencies: %s\n", strings.Join(run.MissingDeps, ", "))
	}
	if run.TimedOut != "" {
		fmt.Fprintf(out, "timed out building %s, %d packages left\n", run.TimedOut, len(run.Remaining))
	}
	return nil
}
