package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ferrovia/tasktree/internal/scheduler"
	"github.com/ferrovia/tasktree/internal/service"
	"github.com/ferrovia/tasktree/internal/task"
	"github.com/ferrovia/tasktree/internal/tui"
)

// taskFile is the on-disk submission shape: a document with a tasks
// list, or a bare list of task specs.
type taskFile struct {
	Tasks []service.TaskSpec `yaml:"tasks"`
}

func loadTaskFile(path string) ([]service.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	var file taskFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Tasks) > 0 {
		return file.Tasks, nil
	}

	var bare []service.TaskSpec
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	return bare, nil
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "run <tasks.yaml>",
		Short: "Submit a task file and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadTaskFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, opts, watch)
			if err != nil {
				return err
			}
			defer a.close()

			if watch {
				return runWatched(cmd, a, specs)
			}

			agg, err := a.svc.Submit(cmd.Context(), specs)
			if err != nil && !errors.Is(err, scheduler.ErrRootFailed) {
				return err
			}
			if printErr := printAggregate(cmd, agg); printErr != nil {
				return printErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "show a live status view while the tree runs")
	return cmd
}

// runWatched runs the submission behind a live TUI fed by the event
// bus, then prints the aggregate once the program exits.
func runWatched(cmd *cobra.Command, a *app, specs []service.TaskSpec) error {
	rows := make([]tui.Row, 0, len(specs))
	for _, s := range specs {
		rows = append(rows, tui.Row{TaskID: s.ID, Method: s.Method, Status: task.StatusPending})
	}

	done := make(chan struct{})
	var agg *scheduler.Aggregate
	var runErr error
	go func() {
		defer close(done)
		agg, runErr = a.svc.Submit(cmd.Context(), specs)
	}()

	model := tui.New("tasktree run", rows, a.bus.SubscribeAll(64), done)
	if _, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("watch view: %w", err)
	}
	<-done

	if runErr != nil && !errors.Is(runErr, scheduler.ErrRootFailed) {
		return runErr
	}
	if err := printAggregate(cmd, agg); err != nil {
		return err
	}
	return runErr
}

func printAggregate(cmd *cobra.Command, agg *scheduler.Aggregate) error {
	if agg == nil {
		return nil
	}
	out, err := yaml.Marshal(agg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
