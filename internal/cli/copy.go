package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ferrovia/tasktree/internal/scheduler"
)

func newCopyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <task-id>",
		Short: "Re-run a stored task and its dependents as a fresh copy",
		Long: `copy builds a minimal re-runnable clone of the task and everything
that transitively depends on it, then runs the clone. The original
records are never mutated; the copied task is flagged has_copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			agg, err := a.svc.SubmitCopy(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, scheduler.ErrRootFailed) {
				return err
			}
			if printErr := printAggregate(cmd, agg); printErr != nil {
				return printErr
			}
			return err
		},
	}
}
