package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show a stored task record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.svc.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(rec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newRunningCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "running",
		Short: "List stored tasks currently in progress",
		Long: `running lists every record the database holds in in_progress,
including runs owned by other processes against the same database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			recs, err := a.svc.InProgress(cmd.Context())
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tasks running")
				return nil
			}
			for _, rec := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.ID, rec.Method)
			}
			return nil
		},
	}
}
