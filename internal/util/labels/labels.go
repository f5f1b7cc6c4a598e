package labels

import "strings"

// Label keys. Everything is namespaced under stagehand.io.
const (
	KeyStack     = "stagehand.io/stack"
	KeyNode      = "stagehand.io/node"
	KeyRun       = "stagehand.io/run"
	KeyManagedBy = "stagehand.io/managed-by"

	// KeyStackNamespace is the label docker stack deploy puts on services.
	KeyStackNamespace = "com.docker.stack.namespace"
)

// ManagedBy is the value of KeyManagedBy.
const ManagedBy = "stagehand"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder starts a label set for a stack.
func NewLabelBuilder(stack string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyStack:     Value(stack),
			KeyManagedBy: ManagedBy,
		},
	}
}

// WithNode adds the node name.
func (lb *LabelBuilder) WithNode(node string) *LabelBuilder {
	lb.labels[KeyNode] = Value(node)
	return lb
}

// WithRunIfSet adds the run identifier when one is given.
func (lb *LabelBuilder) WithRunIfSet(run string) *LabelBuilder {
	if run != "" {
		lb.labels[KeyRun] = run
	}
	return lb
}

// Merge adds all labels from extra.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// Value makes s usable as a label value: at most 63 characters of
// alphanumerics, '-', '_' and '.', starting and ending alphanumeric.
func Value(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	v := b.String()
	if len(v) > 63 {
		v = v[:63]
	}
	return strings.Trim(v, "-_.")
}
