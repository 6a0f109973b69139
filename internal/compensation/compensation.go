// Package compensation implements Kenny's Compensation Engine: given the
// steps a failed plan execution already completed, it undoes them in
// reverse order, choosing a strategy per step (inverse_op, data_restore,
// manual_intervention, no_action_needed) and logging every attempt to the
// audit sink.
package compensation

import (
	"context"
	"fmt"

	"kenny/internal/audit"
	"kenny/internal/logging"
	"kenny/internal/plan"
	"kenny/internal/tools"
)

// Engine runs rollback for a failed plan execution.
type Engine struct {
	registry *tools.Registry
	sink     *audit.Sink
}

// NewEngine builds a compensation Engine. sink may be audit.NoopSink() in
// tests or dry-run contexts.
func NewEngine(registry *tools.Registry, sink *audit.Sink) *Engine {
	return &Engine{registry: registry, sink: sink}
}

// Compensate reverses completed, in reverse order, and returns one
// StepResult per attempted rollback. It never returns an error itself: a
// failed compensation is recorded in the result, not propagated, since
// partial rollback is still useful information for the caller.
func (e *Engine) Compensate(ctx context.Context, correlationID string, completed []plan.CompletedStep) []plan.StepResult {
	results := make([]plan.StepResult, 0, len(completed))

	for i := len(completed) - 1; i >= 0; i-- {
		cs := completed[i]

		switch cs.Step.Rollback {
		case plan.StrategyInverseOp:
			t := e.registry.Get(cs.Step.ToolName)
			if t == nil {
				results = append(results, e.record(correlationID, cs, "failed", fmt.Sprintf("tool %q no longer registered", cs.Step.ToolName)))
				continue
			}
			results = append(results, e.inverseOp(ctx, correlationID, cs, t))
		case plan.StrategyDataRestore:
			results = append(results, e.manualFlag(correlationID, cs, "data_restore", "pre-image not captured; operator must restore prior state manually"))
		case plan.StrategyManual:
			results = append(results, e.manualFlag(correlationID, cs, "manual_intervention", fmt.Sprintf("%s is irreversible; review audit log for remediation", cs.Step.ToolName)))
		default:
			results = append(results, plan.StepResult{StepIndex: cs.StepIndex, ToolName: cs.Step.ToolName})
			e.emit(correlationID, cs.StepIndex, cs.Step.ToolName, "no_action_needed", true, "non-mutating step, nothing to undo")
		}
	}
	return results
}

func (e *Engine) inverseOp(ctx context.Context, correlationID string, cs plan.CompletedStep, t *tools.Tool) plan.StepResult {
	inverse := e.registry.Get(t.InverseOf)
	if inverse == nil {
		return e.record(correlationID, cs, "failed", fmt.Sprintf("inverse tool %q not registered", t.InverseOf))
	}

	idx := cs.StepIndex
	res, err := e.registry.ExecuteWithCorrelation(ctx, inverse.Name, map[string]any{"document_id": cs.Result}, correlationID, "", &idx, true)
	if err != nil {
		e.emit(correlationID, cs.StepIndex, inverse.Name, "inverse_op", false, err.Error())
		return plan.StepResult{StepIndex: cs.StepIndex, ToolName: inverse.Name, Error: err.Error()}
	}
	e.emit(correlationID, cs.StepIndex, inverse.Name, "inverse_op", true, "")
	return plan.StepResult{StepIndex: cs.StepIndex, ToolName: inverse.Name, Result: res.Result}
}

func (e *Engine) manualFlag(correlationID string, cs plan.CompletedStep, strategy, message string) plan.StepResult {
	logging.Compensate("step %d (%s) requires %s: %s", cs.StepIndex, cs.Step.ToolName, strategy, message)
	e.emit(correlationID, cs.StepIndex, cs.Step.ToolName, strategy, false, message)
	return plan.StepResult{StepIndex: cs.StepIndex, ToolName: cs.Step.ToolName, Error: message}
}

func (e *Engine) record(correlationID string, cs plan.CompletedStep, strategy, message string) plan.StepResult {
	e.emit(correlationID, cs.StepIndex, cs.Step.ToolName, strategy, false, message)
	return plan.StepResult{StepIndex: cs.StepIndex, ToolName: cs.Step.ToolName, Error: message}
}

func (e *Engine) emit(correlationID string, stepIndex int, toolName, strategy string, success bool, message string) {
	if e.sink == nil {
		return
	}
	idx := stepIndex
	e.sink.Emit(audit.Event{
		CorrelationID: correlationID,
		StepIndex:     &idx,
		ToolName:      toolName,
		Event:         "compensation",
		Details: map[string]any{
			"strategy": strategy,
			"success":  success,
			"message":  message,
		},
	})
}
