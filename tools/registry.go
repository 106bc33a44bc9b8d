// Package tools provides a metadata-driven registry for MCP tool definitions.
// Tools are declared as ToolSpecs and bound to typed moodle.Client wrappers.
package tools

// ToolSpec defines a tool's metadata for declarative registration.
// Each spec maps to a moodle.Client ...MCP method with matching Args/Result types.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "moodle_get_courses")
	Name string

	// Method is the client method name without the MCP suffix (e.g., "GetCourses")
	Method string

	// Description is the tool description shown to LLMs
	Description string

	// Title is the human-readable tool title for annotations
	Title string

	// Category groups tools logically (functions, courses, users, files)
	Category string

	// ReadOnly indicates the tool doesn't modify site state
	ReadOnly bool

	// Destructive indicates the tool can delete or overwrite data
	Destructive bool

	// Idempotent indicates repeated calls have the same effect
	Idempotent bool

	// OpenWorld indicates the tool accesses external resources
	OpenWorld bool
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}

// ToolsByCategory returns the specs in the given category.
func ToolsByCategory(category string) []ToolSpec {
	var out []ToolSpec
	for _, spec := range AllTools {
		if spec.Category == category {
			out = append(out, spec)
		}
	}
	return out
}
