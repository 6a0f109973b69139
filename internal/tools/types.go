// Package tools implements Kenny's tool registry: a catalog
// of named, schema-validated operations that the plan engine assembles into
// steps and the engine facade executes with a correlation id attached to
// every audit event the tool produces.
package tools

import (
	"context"
)

// ToolCategory classifies tools for catalog listing and CLI help text.
type ToolCategory string

const (
	// CategoryQuery covers read-only search and retrieval operations.
	CategoryQuery ToolCategory = "query"

	// CategoryReminder covers reminder create/update/delete.
	CategoryReminder ToolCategory = "reminder"

	// CategoryEvent covers calendar event create/update/delete.
	CategoryEvent ToolCategory = "event"

	// CategoryNote covers note create/update.
	CategoryNote ToolCategory = "note"

	// CategoryCommunication covers sending email or messages.
	CategoryCommunication ToolCategory = "communication"

	// CategoryGeneral is for tools usable across intents (stats, ingest).
	CategoryGeneral ToolCategory = "general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution. Returns the result
// string and any error. When the tool runs via ExecuteWithCorrelation,
// args also carries the reserved correlation keys (_correlation_id,
// _plan_id, _step_index, _is_rollback); those are stripped only for schema
// validation, not before Execute is invoked.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Mutating reports whether running a tool changes stored state. Mutating
// tools require a plan before execution; read-only tools
// may run directly.
type Mutating bool

const (
	ReadOnly  Mutating = false
	Mutates   Mutating = true
)

// Tool defines one catalog entry.
type Tool struct {
	// Name is the unique identifier for the tool, e.g. "create_reminder".
	Name string

	// Description explains what the tool does, surfaced to planners.
	Description string

	// Category classifies the tool for catalog listing.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority is used when multiple tools match an ambiguous query.
	// Higher priority tools are preferred (default 50).
	Priority int

	// RequiresContext indicates if the tool needs session context beyond
	// its arguments (the store handle, embedder, correlation metadata).
	RequiresContext bool

	// Mutates marks the tool as state-changing, gating it behind the plan
	// engine's confirm step.
	Mutates Mutating

	// InverseOf names the tool that undoes this one's effect, used by the
	// compensation engine's inverse_op strategy. Empty if
	// no clean inverse exists.
	InverseOf string
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	c := *t
	c.Priority = priority
	return &c
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64

	// CorrelationID is the id shared across every tool call and audit
	// event belonging to one user request or plan execution.
	CorrelationID string
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
