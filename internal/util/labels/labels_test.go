package labels

import (
	"strings"
	"testing"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		stack string
		want  string
	}{
		{"simple stack name", "replication", "replication"},
		{"with underscore", "galera_cluster", "galera_cluster"},
		{"with slash", "tests/replication", "tests-replication"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			labels := NewLabelBuilder(tt.stack).Build()

			if labels[KeyStack] != tt.want {
				t.Errorf("expected %s=%q, got %q", KeyStack, tt.want, labels[KeyStack])
			}
			if labels[KeyManagedBy] != ManagedBy {
				t.Errorf("expected %s=%q, got %q", KeyManagedBy, ManagedBy, labels[KeyManagedBy])
			}
		})
	}
}

func TestLabelBuilder_Chain(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder("replication").
		WithNode("node_000").
		WithRunIfSet("1f0e").
		Merge(map[string]string{"team": "qa"}).
		Build()

	expected := map[string]string{
		KeyStack:     "replication",
		KeyManagedBy: ManagedBy,
		KeyNode:      "node_000",
		KeyRun:       "1f0e",
		"team":       "qa",
	}
	if len(labels) != len(expected) {
		t.Fatalf("expected %d labels, got %d: %v", len(expected), len(labels), labels)
	}
	for k, v := range expected {
		if labels[k] != v {
			t.Errorf("expected %s=%q, got %q", k, v, labels[k])
		}
	}
}

func TestWithRunIfSet_Empty(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder("replication").WithRunIfSet("").Build()
	if _, ok := labels[KeyRun]; ok {
		t.Errorf("expected no %s label, got %v", KeyRun, labels)
	}
}

func TestBuild_ReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("replication")
	first := lb.Build()
	first[KeyStack] = "modified"

	if lb.Build()[KeyStack] != "replication" {
		t.Error("Build should return a copy")
	}
}

func TestValue(t *testing.T) {
	t.Parallel()
	if got := Value("-node 000-"); got != "node-000" {
		t.Errorf("expected %q, got %q", "node-000", got)
	}
	if got := Value(strings.Repeat("a", 80)); len(got) != 63 {
		t.Errorf("expected 63 characters, got %d", len(got))
	}
}
