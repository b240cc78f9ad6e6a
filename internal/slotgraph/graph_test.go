package slotgraph

import (
	"errors"
	"testing"
)

func intakeGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := New([]Definition{
		{ID: "full_name", Prompt: "What is your full name?", Required: true, DefaultNext: "dob"},
		{ID: "dob", Prompt: "What is your date of birth?", Required: true, DefaultNext: "has_partner"},
		{ID: "has_partner", Prompt: "Do you have a partner?", Required: true, DefaultNext: "chief_complaint"},
		{
			ID: "chief_complaint", Prompt: "What brings you in?", Required: true,
			Branches:    []Branch{{Pattern: ".*fertility.*", Next: "months_ttc"}},
			DefaultNext: "",
		},
		{ID: "months_ttc", Prompt: "How many months trying to conceive?", Required: true, DefaultNext: ""},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func TestNextUnfilled_BranchTaken(t *testing.T) {
	g := intakeGraph(t)
	filled := map[string]any{
		"full_name":       "Jane Doe",
		"dob":             "1990-01-01",
		"has_partner":     true,
		"chief_complaint": "fertility issues",
	}

	got, err := g.NextUnfilled(filled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "months_ttc" {
		t.Errorf("expected months_ttc, got %q", got)
	}
}

func TestNextUnfilled_NoBranchMatchCompletes(t *testing.T) {
	g := intakeGraph(t)
	filled := map[string]any{
		"full_name":       "Jane Doe",
		"dob":             "1990-01-01",
		"has_partner":     true,
		"chief_complaint": "a cold",
	}

	got, err := g.NextUnfilled(filled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected interview complete, got %q", got)
	}
}

func TestNextUnfilled_ReturnsRootWhenEmpty(t *testing.T) {
	g := intakeGraph(t)

	got, err := g.NextUnfilled(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "full_name" {
		t.Errorf("expected full_name, got %q", got)
	}
}

func TestNextUnfilled_Deterministic(t *testing.T) {
	g := intakeGraph(t)
	filled := map[string]any{"full_name": "Jane Doe", "dob": "1990-01-01"}

	first, err := g.NextUnfilled(filled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := g.NextUnfilled(filled)
		if err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
		if got != first {
			t.Errorf("call %d returned %q, first call returned %q", i, got, first)
		}
	}
}

func TestNextUnfilled_CycleDetected(t *testing.T) {
	g, err := New([]Definition{
		{ID: "a", Prompt: "A?", DefaultNext: "b"},
		{ID: "b", Prompt: "B?", DefaultNext: "a"},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	got, err := g.NextUnfilled(map[string]any{"a": "x", "b": "y"})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if got != "" {
		t.Errorf("expected empty slot on cycle, got %q", got)
	}
}

func TestNextUnfilled_BranchMatchIsCaseInsensitive(t *testing.T) {
	g := intakeGraph(t)
	filled := map[string]any{
		"full_name":       "Jane Doe",
		"dob":             "1990-01-01",
		"has_partner":     true,
		"chief_complaint": "FERTILITY concerns",
	}

	got, err := g.NextUnfilled(filled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "months_ttc" {
		t.Errorf("expected months_ttc, got %q", got)
	}
}

func TestNextUnfilled_FirstMatchingBranchWins(t *testing.T) {
	g, err := New([]Definition{
		{
			ID: "start", Prompt: "Start?",
			Branches: []Branch{
				{Pattern: ".*blue.*", Next: "first"},
				{Pattern: ".*blue.*", Next: "second"},
			},
			DefaultNext: "",
		},
		{ID: "first", Prompt: "First?", DefaultNext: ""},
		{ID: "second", Prompt: "Second?", DefaultNext: ""},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	got, err := g.NextUnfilled(map[string]any{"start": "blue sky"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first" {
		t.Errorf("expected first branch to win, got %q", got)
	}
}

func TestNextUnfilled_InvalidRegexFallsBackToLiterals(t *testing.T) {
	// "yes|(maybe" does not compile; it should degrade to exact match on
	// the literals "yes" and "(maybe".
	g, err := New([]Definition{
		{
			ID: "consent", Prompt: "Consent?",
			Branches:    []Branch{{Pattern: "yes|(maybe", Next: "details"}},
			DefaultNext: "",
		},
		{ID: "details", Prompt: "Details?", DefaultNext: ""},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	got, err := g.NextUnfilled(map[string]any{"consent": "Yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "details" {
		t.Errorf("expected literal fallback to match, got %q", got)
	}

	got, err = g.NextUnfilled(map[string]any{"consent": "yes please"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("literal fallback should not substring-match, got %q", got)
	}
}

func TestNextUnfilled_BooleanValueBranches(t *testing.T) {
	g, err := New([]Definition{
		{
			ID: "has_partner", Prompt: "Partner?",
			Branches:    []Branch{{Pattern: "true", Next: "partner_name"}},
			DefaultNext: "",
		},
		{ID: "partner_name", Prompt: "Partner name?", DefaultNext: ""},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	got, err := g.NextUnfilled(map[string]any{"has_partner": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "partner_name" {
		t.Errorf("expected boolean stringification to branch, got %q", got)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty graph", nil},
		{"empty id", []Definition{{ID: "", Prompt: "?"}}},
		{"duplicate id", []Definition{{ID: "a", Prompt: "?"}, {ID: "a", Prompt: "?"}}},
		{"unknown default target", []Definition{{ID: "a", Prompt: "?", DefaultNext: "ghost"}}},
		{"unknown branch target", []Definition{{ID: "a", Prompt: "?", Branches: []Branch{{Pattern: "x", Next: "ghost"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.defs); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "Jane", "Jane"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"string list", []string{"a", "b"}, "a, b"},
		{"any list", []any{"a", "b"}, "a, b"},
		{"nil", nil, ""},
		{"number", 6, "6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueString(tt.value); got != tt.want {
				t.Errorf("ValueString(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
