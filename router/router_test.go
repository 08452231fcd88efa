package router

import (
	"context"
	"testing"
)

func noopHandler(ctx context.Context, msg Message) error {
	return nil
}

func TestRegister_ReturnsHandlerUnchanged(t *testing.T) {
	r := New()

	called := false
	h := func(ctx context.Context, msg Message) error {
		called = true
		return nil
	}

	got := r.RegisterNamed("h", "my.routing.key", h)
	if err := got(context.Background(), Message{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected returned handler to be the registered one")
	}
}

func TestRegister_Stacking(t *testing.T) {
	r := New()

	// Registering the same handler under two patterns binds it twice.
	h := r.RegisterNamed("h", "employee.address.edit", noopHandler)
	r.RegisterNamed("h", "org_unit.address.edit", h)

	if got := len(r.Bindings()); got != 2 {
		t.Fatalf("expected 2 bindings, got %d", got)
	}
	if got := len(r.Resolve("employee.address.edit")); got != 1 {
		t.Errorf("expected 1 match for employee key, got %d", got)
	}
	if got := len(r.Resolve("org_unit.address.edit")); got != 1 {
		t.Errorf("expected 1 match for org_unit key, got %d", got)
	}
}

func TestRegister_DuplicateRegistrationsYieldDuplicateBindings(t *testing.T) {
	r := New()
	r.RegisterNamed("h", "my.routing.key", noopHandler)
	r.RegisterNamed("h", "my.routing.key", noopHandler)

	if got := len(r.Resolve("my.routing.key")); got != 2 {
		t.Errorf("expected duplicate registration to resolve twice, got %d", got)
	}
}

func TestRegister_MultipleHandlersSharePattern(t *testing.T) {
	r := New()
	r.RegisterNamed("first", "my.routing.key", noopHandler)
	r.RegisterNamed("second", "my.routing.key", noopHandler)

	matched := r.Resolve("my.routing.key")
	if len(matched) != 2 {
		t.Fatalf("expected both handlers to match, got %d", len(matched))
	}
	// Registration order is preserved.
	if matched[0].Name != "first" || matched[1].Name != "second" {
		t.Errorf("expected registration order, got %q then %q", matched[0].Name, matched[1].Name)
	}
}

func TestResolve_NoMatchIsNotAnError(t *testing.T) {
	r := New()
	r.RegisterNamed("h", "employee.*.edit", noopHandler)

	if matched := r.Resolve("employee.address.create"); len(matched) != 0 {
		t.Errorf("expected no matches, got %d", len(matched))
	}
}

func TestRegister_EmptyPatternPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on empty pattern")
		}
	}()
	New().RegisterNamed("h", "", noopHandler)
}

func TestPatterns_DistinctFirstSeenOrder(t *testing.T) {
	r := New()
	r.RegisterNamed("a", "b.key", noopHandler)
	r.RegisterNamed("b", "a.key", noopHandler)
	r.RegisterNamed("c", "b.key", noopHandler)

	patterns := r.Patterns()
	if len(patterns) != 2 {
		t.Fatalf("expected 2 distinct patterns, got %d", len(patterns))
	}
	if patterns[0] != "b.key" || patterns[1] != "a.key" {
		t.Errorf("expected first-seen order, got %v", patterns)
	}
}

func TestRegister_DerivedFunctionName(t *testing.T) {
	r := New()
	r.Register("my.routing.key", noopHandler)

	bindings := r.Bindings()
	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}
	if bindings[0].Name != "router.noopHandler" {
		t.Errorf("expected derived name router.noopHandler, got %q", bindings[0].Name)
	}
}
