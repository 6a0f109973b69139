package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoTool(name string, mutates Mutating) *Tool {
	return &Tool{
		Name:        name,
		Description: "test tool",
		Category:    CategoryGeneral,
		Schema:      ToolSchema{Required: []string{"x"}},
		Mutates:     mutates,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if _, ok := args["x"]; !ok {
				return "", ErrMissingRequiredArg
			}
			return "ok", nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("noop", ReadOnly)))
	require.True(t, r.Has("noop"))
	require.Nil(t, r.Get("missing"))
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("noop", ReadOnly)))
	err := r.Register(echoTool("noop", ReadOnly))
	require.ErrorIs(t, err, ErrToolAlreadyRegistered)
}

func TestExecuteMissingRequiredArg(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("noop", ReadOnly)))
	_, err := r.Execute(context.Background(), "noop", map[string]any{})
	require.ErrorIs(t, err, ErrMissingRequiredArg)
}

func TestExecuteWithCorrelationStripsReservedKeysFromValidation(t *testing.T) {
	r := NewRegistry()
	var seen map[string]any
	r.MustRegister(&Tool{
		Name:     "capture",
		Schema:   ToolSchema{Required: []string{"x"}},
		Mutates:  Mutates,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			seen = args
			return "ok", nil
		},
	})

	stepIndex := 2
	result, err := r.ExecuteWithCorrelation(context.Background(), "capture", map[string]any{"x": "v"}, "corr-1", "plan-1", &stepIndex, false)
	require.NoError(t, err)
	require.Equal(t, "corr-1", result.CorrelationID)
	require.Equal(t, "corr-1", seen["_correlation_id"])
	require.Equal(t, "plan-1", seen["_plan_id"])
	require.Equal(t, 2, seen["_step_index"])
	require.Equal(t, false, seen["_is_rollback"])
}

func TestExecuteWithCorrelationUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.ExecuteWithCorrelation(context.Background(), "missing", nil, "corr-1", "", nil, false)
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestListSortedByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("zeta", ReadOnly)))
	require.NoError(t, r.Register(echoTool("alpha", ReadOnly)))
	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "alpha", list[0].Name)
	require.Equal(t, "zeta", list[1].Name)
}
