package compensation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/audit"
	"kenny/internal/plan"
	"kenny/internal/store"
	"kenny/internal/tools"
	"kenny/internal/tools/catalog"
)

func TestCompensateReversesReminderViaInverseOp(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := tools.NewRegistry()
	require.NoError(t, catalog.RegisterAll(r, catalog.Deps{Store: s}))

	created, err := r.Execute(context.Background(), "create_reminder", map[string]any{"title": "t", "due_at": int64(100)})
	require.NoError(t, err)

	e := NewEngine(r, audit.NoopSink())
	results := e.Compensate(context.Background(), "corr-1", []plan.CompletedStep{
		{StepIndex: 0, Step: plan.Step{ToolName: "create_reminder", Rollback: plan.StrategyInverseOp}, Result: created.Result},
	})

	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.Equal(t, "delete_reminder", results[0].ToolName)

	_, err = s.GetReminder(created.Result)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompensateReversesInReverseOrder(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := tools.NewRegistry()
	require.NoError(t, catalog.RegisterAll(r, catalog.Deps{Store: s}))

	first, err := r.Execute(context.Background(), "create_reminder", map[string]any{"title": "a", "due_at": int64(1)})
	require.NoError(t, err)
	second, err := r.Execute(context.Background(), "create_reminder", map[string]any{"title": "b", "due_at": int64(2)})
	require.NoError(t, err)

	e := NewEngine(r, audit.NoopSink())
	results := e.Compensate(context.Background(), "corr-1", []plan.CompletedStep{
		{StepIndex: 0, Step: plan.Step{ToolName: "create_reminder", Rollback: plan.StrategyInverseOp}, Result: first.Result},
		{StepIndex: 1, Step: plan.Step{ToolName: "create_reminder", Rollback: plan.StrategyInverseOp}, Result: second.Result},
	})

	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].StepIndex)
	require.Equal(t, 0, results[1].StepIndex)
}

func TestCompensateManualInterventionForIrreversibleStep(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	r := tools.NewRegistry()

	e := NewEngine(r, audit.NoopSink())
	results := e.Compensate(context.Background(), "corr-1", []plan.CompletedStep{
		{StepIndex: 0, Step: plan.Step{ToolName: "send_email", Rollback: plan.StrategyManual}, Result: "sent"},
	})

	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Error)
}

func TestCompensateNoActionForReadOnlyStep(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	r := tools.NewRegistry()
	require.NoError(t, catalog.RegisterAll(r, catalog.Deps{Store: s}))

	e := NewEngine(r, audit.NoopSink())
	results := e.Compensate(context.Background(), "corr-1", []plan.CompletedStep{
		{StepIndex: 0, Step: plan.Step{ToolName: "search", Rollback: plan.StrategyNoAction}, Result: "no results"},
	})

	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
}
