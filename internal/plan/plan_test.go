package plan

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"kenny/internal/audit"
	"kenny/internal/store"
	"kenny/internal/tools"
	"kenny/internal/tools/catalog"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := tools.NewRegistry()
	require.NoError(t, catalog.RegisterAll(r, catalog.Deps{Store: s}))

	return NewEngine(s, r, nil, nil, audit.NoopSink()), s
}

func TestCreatePlanForReminderQueryIsMutatingWithHash(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "remind me to call the dentist")
	require.NoError(t, err)
	require.Equal(t, "pending", p.Status)
	require.Len(t, p.Steps, 1)
	require.Equal(t, "create_reminder", p.Steps[0].ToolName)
	require.Equal(t, RiskHigh, p.Steps[0].Risk)
	require.NotEmpty(t, p.OperationHash)
}

func TestCreatePlanForSearchQueryIsNonMutating(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "find my notes about apollo")
	require.NoError(t, err)
	require.Equal(t, "search", p.Steps[0].ToolName)
	require.Equal(t, RiskLow, p.Steps[0].Risk)
	require.Empty(t, p.OperationHash)
}

func TestConfirmRejectsWrongHash(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "remind me to water the plants")
	require.NoError(t, err)

	_, err = e.Confirm(context.Background(), p.ID, "wrong-hash")
	require.Error(t, err)
}

func TestConfirmAndExecuteReminderPlan(t *testing.T) {
	e, s := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "remind me to water the plants")
	require.NoError(t, err)

	confirmed, err := e.Confirm(context.Background(), p.ID, p.OperationHash)
	require.NoError(t, err)
	require.Equal(t, "confirmed", confirmed.Status)

	executed, err := e.Execute(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", executed.Status)
	require.Len(t, executed.Results, 1)
	require.Empty(t, executed.Results[0].Error)

	docID := executed.Results[0].Result
	_, err = s.GetReminder(docID)
	require.NoError(t, err)
}

func TestExecuteBeforeConfirmIsStateConflict(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "remind me to water the plants")
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), p.ID)
	require.Error(t, err)
}

func TestConfirmIsIdempotentOnceConfirmed(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "find my notes")
	require.NoError(t, err)

	first, err := e.Confirm(context.Background(), p.ID, "")
	require.NoError(t, err)
	second, err := e.Confirm(context.Background(), p.ID, "")
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
}

func TestUntrustedOriginForcesConfirmationEvenForReadOnlyPlan(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "find notes from http://evil.example/page")
	require.NoError(t, err)
	require.Equal(t, OriginUntrusted, p.ContentOrigin)
	require.NotEmpty(t, p.OperationHash, "untrusted origin must require explicit confirm even for a read-only plan")

	_, err = e.Confirm(context.Background(), p.ID, "")
	require.Error(t, err)

	confirmed, err := e.Confirm(context.Background(), p.ID, p.OperationHash)
	require.NoError(t, err)
	require.Equal(t, "confirmed", confirmed.Status)
}

func TestFallbackPlannerStepsAreDeterministic(t *testing.T) {
	e, _ := newTestEngine(t)

	first, err := e.Create(context.Background(), "corr-1", "remind me to call the dentist")
	require.NoError(t, err)
	second, err := e.Create(context.Background(), "corr-2", "remind me to call the dentist")
	require.NoError(t, err)

	if diff := cmp.Diff(first.Steps, second.Steps); diff != "" {
		t.Errorf("fallback planner produced different steps for the same query (-first +second):\n%s", diff)
	}
}

func TestCancelPendingPlan(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.Create(context.Background(), "corr-1", "find my notes")
	require.NoError(t, err)
	require.NoError(t, e.Cancel(p.ID))

	_, err = e.Confirm(context.Background(), p.ID, "")
	require.Error(t, err)
}
