// Package plan implements Kenny's Plan Engine (plan/confirm/execute):
// decomposing a query into tool-backed steps, hashing the mutating ones so
// confirm() can verify nothing changed between proposal and execution, and
// running the confirmed steps with rollback on failure.
package plan

import (
	"context"
	"strings"
	"time"

	"kenny/internal/audit"
	"kenny/internal/ids"
	"kenny/internal/kerrors"
	"kenny/internal/logging"
	"kenny/internal/store"
	"kenny/internal/tools"
)

// RiskLevel classifies a step's blast radius.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ContentOrigin records where a query's text came from, so a query lifted
// from untrusted external content can be downgraded to require explicit
// confirmation even if it would otherwise auto-confirm.
type ContentOrigin string

const (
	OriginUser     ContentOrigin = "user"
	OriginSystem   ContentOrigin = "system"
	OriginExternal ContentOrigin = "external"
	OriginUntrusted ContentOrigin = "untrusted"
)

// RollbackStrategy names how a completed step is undone.
type RollbackStrategy string

const (
	StrategyInverseOp    RollbackStrategy = "inverse_op"
	StrategyDataRestore  RollbackStrategy = "data_restore"
	StrategyManual       RollbackStrategy = "manual_intervention"
	StrategyNoAction     RollbackStrategy = "no_action_needed"
)

// Step is one proposed tool invocation.
type Step struct {
	ToolName    string           `json:"tool_name"`
	Arguments   map[string]any   `json:"arguments"`
	Description string           `json:"description"`
	Risk        RiskLevel        `json:"risk"`
	Rollback    RollbackStrategy `json:"rollback"`
}

// StepResult records what happened when a step ran.
type StepResult struct {
	StepIndex int    `json:"step_index"`
	ToolName  string `json:"tool_name"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Plan is the in-memory, typed view of a store.PlanRow.
type Plan struct {
	ID               string
	CorrelationID    string
	Query            string
	Steps            []Step
	ContentOrigin    ContentOrigin
	UntrustedSignal  string // which pattern triggered the untrusted downgrade, if any
	Status           string
	OperationHash    string
	CreatedAt        int64
	ExpiresAt        int64
	Results          []StepResult
	RollbackResults  []StepResult
}

// Planner decomposes a query into steps. The rule-based Fallback satisfies
// it directly; internal/llmplanner provides an Anthropic-backed alternative.
type Planner interface {
	Plan(ctx context.Context, query string, catalog []*tools.Tool) ([]Step, error)
}

const ttl = 30 * time.Minute

// Engine runs the plan/confirm/execute state machine against a *tools.Registry
// and persists transitions through *store.Store.
type Engine struct {
	store       *store.Store
	registry    *tools.Registry
	planner     Planner
	compensator Compensator
	sink        *audit.Sink
}

// Compensator runs the rollback side of a failed execution (internal/compensation
// implements it); kept as an interface here to avoid an import cycle.
type Compensator interface {
	Compensate(ctx context.Context, correlationID string, completed []CompletedStep) []StepResult
}

// CompletedStep is what the compensator needs to reverse one step.
type CompletedStep struct {
	StepIndex int
	Step      Step
	Result    string
}

// NewEngine builds a Plan Engine. planner may be nil, in which case Create
// always uses the rule-based fallback. sink may be audit.NoopSink().
func NewEngine(s *store.Store, registry *tools.Registry, planner Planner, compensator Compensator, sink *audit.Sink) *Engine {
	return &Engine{store: s, registry: registry, planner: planner, compensator: compensator, sink: sink}
}

// Create decomposes query into a Plan, computes its risk records, rollback
// strategies, content-origin label and operation hash, and persists it as
// pending.
func (e *Engine) Create(ctx context.Context, correlationID, query string) (*Plan, error) {
	steps, err := e.decompose(ctx, query)
	if err != nil {
		return nil, err
	}

	origin, signal := classifyOrigin(query)

	for i := range steps {
		t := e.registry.Get(steps[i].ToolName)
		if t == nil {
			return nil, &kerrors.NotFoundError{Entity: "tool", ID: steps[i].ToolName}
		}
		steps[i].Risk = riskFor(t)
		steps[i].Rollback = rollbackFor(t)
	}

	now := time.Now().Unix()
	p := &Plan{
		ID: ids.New(), CorrelationID: correlationID, Query: query,
		Steps: steps, ContentOrigin: origin, UntrustedSignal: signal, Status: "pending",
		CreatedAt: now, ExpiresAt: now + int64(ttl.Seconds()),
	}
	p.OperationHash = hashMutatingSteps(steps, origin)

	if signal != "" && e.sink != nil {
		e.sink.Emit(audit.Event{
			CorrelationID: correlationID, PlanID: p.ID, Event: "content_origin_downgraded",
			ContentOrigin: string(origin),
			Details:       map[string]any{"signal": signal},
		})
	}

	stepsJSON, err := marshalSteps(steps)
	if err != nil {
		return nil, err
	}
	risksJSON, err := marshalRisks(steps)
	if err != nil {
		return nil, err
	}

	if err := e.store.InsertPlan(store.PlanRow{
		ID: p.ID, CorrelationID: correlationID, Query: query,
		StepsJSON: stepsJSON, RisksJSON: risksJSON, Status: p.Status,
		OperationHash: p.OperationHash, ContentOrigin: string(origin),
		CreatedAt: p.CreatedAt, ExpiresAt: p.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	logging.Plan("created plan %s (%d steps, origin=%s, hash=%s)", p.ID, len(steps), origin, p.OperationHash)
	return p, nil
}

// Confirm transitions a pending plan to confirmed. For plans with mutating
// steps, userHash must equal the operation hash. Non-mutating plans
// (operation hash empty) auto-confirm regardless of userHash. Confirming an
// already-confirmed plan is a no-op that returns the current state.
func (e *Engine) Confirm(ctx context.Context, planID, userHash string) (*Plan, error) {
	row, err := e.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if row.Status == "confirmed" {
		return fromRow(row)
	}
	if err := mustBeExpirableState(row, "pending"); err != nil {
		return nil, err
	}
	if now := time.Now().Unix(); now >= row.ExpiresAt {
		e.store.UpdatePlanStatus(planID, "expired", "", 0)
		return nil, &kerrors.ExpiredError{Entity: "plan", ID: planID}
	}
	if row.OperationHash != "" && userHash != row.OperationHash {
		return nil, &kerrors.HashMismatchError{Expected: row.OperationHash, Provided: userHash}
	}

	if err := e.store.UpdatePlanStatus(planID, "confirmed", "confirmed_at", time.Now().Unix()); err != nil {
		return nil, err
	}
	row.Status = "confirmed"
	logging.Plan("confirmed plan %s", planID)
	return fromRow(row)
}

// Execute runs a confirmed plan's steps sequentially, stamping each tool
// call with the plan's correlation id. On step failure, execution stops and
// the compensator rolls back previously completed steps in reverse order.
// Executing a completed or failed plan is idempotent and returns the stored
// plan without re-running it; executing a plan in any other state than
// confirmed (pending, executing, cancelled, expired) is a typed
// StateConflictError.
func (e *Engine) Execute(ctx context.Context, planID string) (*Plan, error) {
	row, err := e.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if row.Status == "completed" || row.Status == "failed" {
		return fromRow(row)
	}
	if row.Status != "confirmed" {
		return nil, &kerrors.StateConflictError{Expected: "confirmed", Actual: row.Status}
	}

	if err := e.store.UpdatePlanStatus(planID, "executing", "execution_started_at", time.Now().Unix()); err != nil {
		return nil, err
	}

	steps, err := unmarshalSteps(row.StepsJSON)
	if err != nil {
		return nil, err
	}

	var completed []CompletedStep
	var results []StepResult
	failed := false

	for i, step := range steps {
		idx := i
		res, execErr := e.registry.ExecuteWithCorrelation(ctx, step.ToolName, step.Arguments, row.CorrelationID, planID, &idx, false)
		sr := StepResult{StepIndex: i, ToolName: step.ToolName}
		if execErr != nil {
			sr.Error = execErr.Error()
			results = append(results, sr)
			failed = true
			break
		}
		sr.Result = res.Result
		results = append(results, sr)
		completed = append(completed, CompletedStep{StepIndex: i, Step: step, Result: res.Result})
	}

	var rollbackResults []StepResult
	status := "completed"
	if failed {
		status = "failed"
		if e.compensator != nil && len(completed) > 0 {
			rollbackResults = e.compensator.Compensate(ctx, row.CorrelationID, completed)
		}
	}

	resultsJSON, err := marshalStepResults(results)
	if err != nil {
		return nil, err
	}
	rollbackJSON, err := marshalStepResults(rollbackResults)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetPlanResults(planID, resultsJSON, rollbackJSON); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePlanStatus(planID, status, "execution_completed_at", time.Now().Unix()); err != nil {
		return nil, err
	}

	logging.Plan("executed plan %s: status=%s steps=%d rollback=%d", planID, status, len(results), len(rollbackResults))

	row.Status = status
	p, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	p.Results = results
	p.RollbackResults = rollbackResults
	return p, nil
}

// Cancel transitions a pending or confirmed plan to cancelled. Cancelling a
// terminal-state plan is a typed error.
func (e *Engine) Cancel(planID string) error {
	row, err := e.store.GetPlan(planID)
	if err != nil {
		return err
	}
	if row.Status != "pending" && row.Status != "confirmed" {
		return &kerrors.StateConflictError{Expected: "pending or confirmed", Actual: row.Status}
	}
	return e.store.UpdatePlanStatus(planID, "cancelled", "", 0)
}

// ExpireStale transitions any pending plan past its TTL to expired. Intended
// to be called periodically by the background processor.
func (e *Engine) ExpireStale() (int, error) {
	return e.store.ExpirePendingPlans(time.Now().Unix())
}

func mustBeExpirableState(row store.PlanRow, want string) error {
	if row.Status != want {
		return &kerrors.StateConflictError{Expected: want, Actual: row.Status}
	}
	return nil
}

func (e *Engine) decompose(ctx context.Context, query string) ([]Step, error) {
	if e.planner != nil {
		steps, err := e.planner.Plan(ctx, query, e.registry.List())
		if err == nil && len(steps) > 0 {
			return steps, nil
		}
		logging.Plan("planner unavailable or returned nothing, falling back to rule-based: %v", err)
	}
	return Fallback{}.Plan(ctx, query, e.registry.List())
}

func riskFor(t *tools.Tool) RiskLevel {
	if !bool(t.Mutates) {
		return RiskLow
	}
	if strings.HasPrefix(t.Name, "delete_") {
		return RiskCritical
	}
	return RiskHigh
}

func rollbackFor(t *tools.Tool) RollbackStrategy {
	if !bool(t.Mutates) {
		return StrategyNoAction
	}
	if t.InverseOf != "" {
		return StrategyInverseOp
	}
	if strings.HasPrefix(t.Name, "send_") {
		return StrategyManual
	}
	if strings.HasPrefix(t.Name, "update_") {
		return StrategyDataRestore
	}
	return StrategyManual
}

// hashMutatingSteps computes the operation hash over every mutating step.
// When origin is untrusted, every step is hashed (even read-only ones) so
// Confirm never auto-confirms a plan whose query was lifted from external
// content, regardless of whether that plan happens to be non-mutating.
func hashMutatingSteps(steps []Step, origin ContentOrigin) string {
	var covered []ids.MutatingStep
	for _, s := range steps {
		if s.Risk == RiskLow && origin != OriginUntrusted {
			continue
		}
		covered = append(covered, ids.MutatingStep{ToolName: s.ToolName, Arguments: s.Arguments})
	}
	if len(covered) == 0 {
		return ""
	}
	return ids.CanonicalHash(covered)
}

func fromRow(row store.PlanRow) (*Plan, error) {
	steps, err := unmarshalSteps(row.StepsJSON)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		ID: row.ID, CorrelationID: row.CorrelationID, Query: row.Query,
		Steps: steps, ContentOrigin: ContentOrigin(row.ContentOrigin),
		Status: row.Status, OperationHash: row.OperationHash,
		CreatedAt: row.CreatedAt, ExpiresAt: row.ExpiresAt,
	}
	if row.ResultsJSON.Valid && row.ResultsJSON.String != "" {
		results, err := unmarshalStepResults(row.ResultsJSON.String)
		if err != nil {
			return nil, err
		}
		p.Results = results
	}
	if row.RollbackResultsJSON.Valid && row.RollbackResultsJSON.String != "" {
		results, err := unmarshalStepResults(row.RollbackResultsJSON.String)
		if err != nil {
			return nil, err
		}
		p.RollbackResults = results
	}
	return p, nil
}
