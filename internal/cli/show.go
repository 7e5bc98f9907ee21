package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autobuild/internal/app"
	"autobuild/internal/types"
)

type showOptions struct {
	Report string
}

func newShowCommand() *cobra.Command {
	opts := showOptions{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show all packages to be built",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShow(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write the classification as YAML to this path")
	return cmd
}

func runShow(ctx context.Context, cmd *cobra.Command, opts showOptions) error {
	service, err := newAppService(ctx)
	if err != nil {
		return err
	}
	result, err := service.Show(ctx, app.ShowRequest{
		ReportPath: resolveString(cmd, opts.Report, "report", "report"),
	})
	if err != nil {
		return err
	}
	return printClassification(cmd.OutOrStdout(), result.Classification)
}

func printClassification(out io.Writer, classification types.Classification) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TODO (%d)\n", len(classification.Todo))
	fmt.Fprintln(w, "Package\tVersion")
	for _, entry := range classification.Todo {
		fmt.Fprintf(w, "%s\t%s\n", entry.Name, entry.Version)
	}
	fmt.Fprintf(w, "\nSKIPPED (%d)\n", len(classification.Skipped))
	fmt.Fprintln(w, "Package\tVersion\tReason")
	for _, skipped := range classification.Skipped {
		fmt.Fprintf(w, "%s\t%s\t%s\n", skipped.Entry.Name, skipped.Entry.Version, skipped.Reason)
	}
	fmt.Fprintf(w, "\nDONE (%d)\n", len(classification.Done))
	fmt.Fprintln(w, "Package\tVersion")
	for _, entry := range classification.Done {
		fmt.Fprintf(w, "%s\t%s\n", entry.Name, entry.Version)
	}
	return w.Flush()
}
