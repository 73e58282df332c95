package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/ferrovia/tasktree/internal/registry"
)

// SleepExecutor waits for a duration. Useful for demos, pipelines that
// need a delay step, and exercising cancellation.
type SleepExecutor struct{}

func (SleepExecutor) InputSchema() registry.Schema {
	return registry.Schema{Required: []string{"duration"}}
}

func (SleepExecutor) Invoke(ctx context.Context, inputs map[string]any) (*registry.Outcome, error) {
	raw, _ := inputs["duration"].(string)
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("input \"duration\": %w", err)
	}

	start := time.Now()
	select {
	case <-time.After(dur):
		return &registry.Outcome{
			Result: map[string]any{"slept": dur.String()},
			Meta:   map[string]any{"duration_ms": time.Since(start).Milliseconds()},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegisterBuiltins registers the built-in executors on a registry.
func RegisterBuiltins(reg *registry.Registry) error {
	if err := reg.Register("shell", ShellExecutor{}); err != nil {
		return err
	}
	return reg.Register("sleep", SleepExecutor{})
}
