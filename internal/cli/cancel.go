package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a task",
		Long: `cancel marks the task cancelled in persistence. A running scheduler
picks the flag up at its next checkpoint for that task or its in-flight
descendants; there is no forced kill.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for %s\n", args[0])
			return nil
		},
	}
}
