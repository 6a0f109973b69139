package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kenny/internal/logging"
)

// Reserved argument keys carrying correlation metadata.
// Injected into handler args, stripped before schema validation.
const (
	keyCorrelationID = "_correlation_id"
	keyPlanID        = "_plan_id"
	keyStepIndex     = "_step_index"
	keyIsRollback    = "_is_rollback"
)

// Registry holds all available tools and provides lookup, validation and
// correlation-stamped execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	byCategory map[ToolCategory][]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[ToolCategory][]*Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	if tool.Priority == 0 {
		tool.Priority = 50
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("registered tool: %s (category=%s, mutates=%v)", tool.Name, tool.Category, bool(tool.Mutates))
	return nil
}

// MustRegister registers a tool and panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns every registered tool, sorted by name. This is the catalog
// a planner reads to choose tools.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetByCategory returns all tools in a category, sorted by priority (descending).
func (r *Registry) GetByCategory(category ToolCategory) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, len(r.byCategory[category]))
	copy(tools, r.byCategory[category])

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Priority > tools[j].Priority
	})

	return tools
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Validate checks that args satisfy a tool's schema without executing it.
// Reserved correlation keys are stripped before the required-argument
// check, matching ExecuteWithCorrelation's validation order.
func (r *Registry) Validate(name string, args map[string]any) error {
	tool := r.Get(name)
	if tool == nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.validateArgs(tool, stripCorrelationKeys(args))
}

// Execute runs a tool by name with no correlation metadata attached. Used
// for read-only queries outside of a plan.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.run(ctx, tool, args)
}

// ExecuteWithCorrelation runs a tool as one step of a plan, or as its
// rollback. correlationID is required; planID and stepIndex are empty/nil
// for ad-hoc (non-plan) invocations. Correlation metadata is injected into
// the handler's args and stripped again before schema validation.
func (r *Registry) ExecuteWithCorrelation(ctx context.Context, name string, args map[string]any, correlationID, planID string, stepIndex *int, isRollback bool) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	full := make(map[string]any, len(args)+4)
	for k, v := range args {
		full[k] = v
	}
	full[keyCorrelationID] = correlationID
	if planID != "" {
		full[keyPlanID] = planID
	}
	if stepIndex != nil {
		full[keyStepIndex] = *stepIndex
	}
	full[keyIsRollback] = isRollback

	result, err := r.run(ctx, tool, full)
	if result != nil {
		result.CorrelationID = correlationID
	}
	return result, err
}

func (r *Registry) run(ctx context.Context, tool *Tool, args map[string]any) (*ToolResult, error) {
	start := time.Now()

	if err := r.validateArgs(tool, stripCorrelationKeys(args)); err != nil {
		return &ToolResult{ToolName: tool.Name, Error: err, DurationMs: time.Since(start).Milliseconds()}, err
	}

	logging.ToolsDebug("executing tool: %s", tool.Name)
	result, err := tool.Execute(ctx, args)
	duration := time.Since(start)
	logging.ToolsDebug("tool %s completed in %v (success=%v)", tool.Name, duration, err == nil)

	return &ToolResult{
		ToolName:   tool.Name,
		Result:     result,
		Error:      err,
		DurationMs: duration.Milliseconds(),
	}, err
}

// validateArgs checks that all required arguments are present.
func (r *Registry) validateArgs(tool *Tool, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}

func stripCorrelationKeys(args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch k {
		case keyCorrelationID, keyPlanID, keyStepIndex, keyIsRollback:
			continue
		default:
			out[k] = v
		}
	}
	return out
}

// Global registry instance for convenience.
var globalRegistry = NewRegistry()

// Global returns the global tool registry.
func Global() *Registry {
	return globalRegistry
}

// Register adds a tool to the global registry.
func Register(tool *Tool) error {
	return globalRegistry.Register(tool)
}

// MustRegisterGlobal registers a tool in the global registry, panicking on error.
func MustRegisterGlobal(tool *Tool) {
	globalRegistry.MustRegister(tool)
}

// Get retrieves a tool from the global registry.
func Get(name string) *Tool {
	return globalRegistry.Get(name)
}

// Execute runs a tool from the global registry.
func Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	return globalRegistry.Execute(ctx, name, args)
}
