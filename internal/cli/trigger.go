package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"autobuild/internal/app"
)

type triggerOptions struct {
	Event string
}

func newTriggerCommand() *cobra.Command {
	opts := triggerOptions{}
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger a build run in the store's CI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, err := newAppService(cmd.Context())
			if err != nil {
				return err
			}
			if err := service.Trigger(cmd.Context(), app.TriggerRequest{Event: opts.Event}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Build triggered")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Event, "event", app.DefaultEvent, "Dispatch event type")
	return cmd
}
