package registry

import (
	"context"
	"strings"
	"testing"
)

type stubExecutor struct {
	schema Schema
}

func (s *stubExecutor) Invoke(_ context.Context, _ map[string]any) (*Outcome, error) {
	return &Outcome{}, nil
}

func (s *stubExecutor) InputSchema() Schema { return s.schema }

func TestRegisterAndResolve(t *testing.T) {
	reg := New()
	ex := &stubExecutor{}

	if err := reg.Register("shell", ex); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := reg.Resolve("shell")
	if !ok || got != ex {
		t.Error("Resolve did not return the registered executor")
	}

	if _, ok := reg.Resolve("missing"); ok {
		t.Error("Resolve returned an executor for an unregistered method")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := New()
	if err := reg.Register("shell", &stubExecutor{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := reg.Register("shell", &stubExecutor{})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("duplicate registration error = %v", err)
	}
}

func TestMethods(t *testing.T) {
	reg := New()
	reg.Register("sleep", &stubExecutor{})
	reg.Register("shell", &stubExecutor{})

	got := reg.Methods()
	if len(got) != 2 || got[0] != "shell" || got[1] != "sleep" {
		t.Errorf("Methods() = %v, want [shell sleep]", got)
	}
}

func TestValidateInputs(t *testing.T) {
	ex := &stubExecutor{schema: Schema{Required: []string{"command"}}}

	if err := ValidateInputs(ex, map[string]any{"command": "true"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateInputs(ex, map[string]any{}); err == nil {
		t.Error("expected error for missing required input")
	}
}
