package plan

import (
	"context"
	"strings"
	"time"

	"kenny/internal/kerrors"
	"kenny/internal/tools"
)

// Fallback is the rule-based single-step planner used when no LLM planner
// is configured or the LLM planner is unavailable. It recognizes a handful
// of intent keywords and maps them to the matching catalog tool; anything
// it can't classify becomes a plain search.
type Fallback struct{}

// Plan implements Planner.
func (Fallback) Plan(_ context.Context, query string, catalog []*tools.Tool) ([]Step, error) {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, "remind me", "reminder"):
		if !hasTool(catalog, "create_reminder") {
			return nil, &kerrors.NotFoundError{Entity: "tool", ID: "create_reminder"}
		}
		return []Step{{
			ToolName:    "create_reminder",
			Arguments:   map[string]any{"title": strings.TrimSpace(query), "due_at": time.Now().Add(time.Hour).Unix()},
			Description: "create a reminder from the query text, due in one hour by default",
		}}, nil

	case containsAny(lower, "today", "calendar", "schedule", "agenda"):
		if !hasTool(catalog, "calendar_list") {
			return nil, &kerrors.NotFoundError{Entity: "tool", ID: "calendar_list"}
		}
		now := time.Now()
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return []Step{{
			ToolName:    "calendar_list",
			Arguments:   map[string]any{"from": start.Unix(), "to": start.Add(24 * time.Hour).Unix()},
			Description: "list today's events",
		}}, nil

	default:
		if !hasTool(catalog, "search") {
			return nil, &kerrors.NotFoundError{Entity: "tool", ID: "search"}
		}
		return []Step{{
			ToolName:    "search",
			Arguments:   map[string]any{"query": query, "limit": int64(10)},
			Description: "keyword/hybrid search over stored documents",
		}}, nil
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasTool(catalog []*tools.Tool, name string) bool {
	for _, t := range catalog {
		if t.Name == name {
			return true
		}
	}
	return false
}
