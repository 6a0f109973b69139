package llmplanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/tools"
)

func TestPropertiesToMapCarriesEnumAndDefault(t *testing.T) {
	props := map[string]tools.Property{
		"limit": {Type: "integer", Description: "max results", Default: 10},
		"kind":  {Type: "string", Description: "filter", Enum: []any{"note", "email"}},
	}
	out := propertiesToMap(props)

	limit, ok := out["limit"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 10, limit["default"])

	kind, ok := out["kind"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"note", "email"}, kind["enum"])
}

func TestToolByNameFindsRegisteredTool(t *testing.T) {
	catalog := []*tools.Tool{
		{Name: "search", Description: "find things"},
		{Name: "create_reminder", Description: "make a reminder"},
	}

	found := toolByName(catalog, "create_reminder")
	require.NotNil(t, found)
	require.Equal(t, "make a reminder", found.Description)

	require.Nil(t, toolByName(catalog, "unknown_tool"))
}
