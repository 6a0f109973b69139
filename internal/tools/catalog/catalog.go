// Package catalog builds Kenny's tool registry: the create_reminder,
// delete_reminder, create_event, delete_event, search and calendar_list
// tools, wired to a *store.Store. Registration happens once at engine
// startup via RegisterAll.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kenny/internal/ids"
	"kenny/internal/kerrors"
	"kenny/internal/store"
	"kenny/internal/tools"
)

// Searcher is satisfied by internal/search's hybrid search engine. Kept as
// an interface here so the tool catalog does not import internal/search
// directly (search, in turn, may want to call tools for query-time
// enrichment without an import cycle).
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearchHit mirrors the fields a search tool needs to render a result row.
type SearchHit struct {
	DocumentID string
	Title      string
	Snippet    string
	Score      float64
}

// Deps bundles what the catalog's tools need to run.
type Deps struct {
	Store    *store.Store
	Searcher Searcher // optional; nil falls back to keyword-only search
}

// RegisterAll registers Kenny's full tool catalog with the registry.
func RegisterAll(r *tools.Registry, deps Deps) error {
	all := []*tools.Tool{
		createReminderTool(deps.Store),
		deleteReminderTool(deps.Store),
		createEventTool(deps.Store),
		deleteEventTool(deps.Store),
		searchTool(deps),
		calendarListTool(deps.Store),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("registering tool %s: %w", t.Name, err)
		}
	}
	return nil
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &kerrors.ValidationFailedError{Field: key, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &kerrors.ValidationFailedError{Field: key, Reason: "must be a string"}
	}
	return s, nil
}

func argInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, &kerrors.ValidationFailedError{Field: key, Reason: "missing"}
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, &kerrors.ValidationFailedError{Field: key, Reason: "must be a unix timestamp"}
	}
}

func createReminderTool(s *store.Store) *tools.Tool {
	return &tools.Tool{
		Name:        "create_reminder",
		Description: "Create a reminder with a title and due time.",
		Category:    tools.CategoryReminder,
		Mutates:     tools.Mutates,
		InverseOf:   "delete_reminder",
		Schema: tools.ToolSchema{
			Required: []string{"title", "due_at"},
			Properties: map[string]tools.Property{
				"title":     {Type: "string", Description: "reminder text"},
				"due_at":    {Type: "integer", Description: "unix seconds the reminder is due"},
				"list_name": {Type: "string", Description: "reminder list, defaults to \"Reminders\""},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			title, err := argString(args, "title")
			if err != nil {
				return "", err
			}
			dueAt, err := argInt64(args, "due_at")
			if err != nil {
				return "", err
			}
			listName, _ := args["list_name"].(string)
			if listName == "" {
				listName = "Reminders"
			}

			now := time.Now().Unix()
			d := store.Document{
				Kind: store.KindReminder, Title: title, Content: title,
				SourceApp: "kenny", SourceID: uuid.NewString(),
				CreatedAt: now, UpdatedAt: now, LastSeenAt: now,
			}
			d.ContentHash = store.ContentHash(d.Kind, d.Title, d.Content)

			result, err := s.UpsertDocument(d, ids.New)
			if err != nil {
				return "", err
			}
			if err := s.UpsertReminder(store.Reminder{DocumentID: result.Document.ID, DueAt: dueAt, ListName: listName}); err != nil {
				return "", err
			}
			return result.Document.ID, nil
		},
	}
}

func deleteReminderTool(s *store.Store) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_reminder",
		Description: "Delete a reminder by document id. Inverse of create_reminder.",
		Category:    tools.CategoryReminder,
		Mutates:     tools.Mutates,
		Schema: tools.ToolSchema{
			Required:   []string{"document_id"},
			Properties: map[string]tools.Property{"document_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := argString(args, "document_id")
			if err != nil {
				return "", err
			}
			if err := s.DeleteReminder(id); err != nil {
				return "", err
			}
			return id, nil
		},
	}
}

func createEventTool(s *store.Store) *tools.Tool {
	return &tools.Tool{
		Name:        "create_event",
		Description: "Create a calendar event with a title, start and end time.",
		Category:    tools.CategoryEvent,
		Mutates:     tools.Mutates,
		InverseOf:   "delete_event",
		Schema: tools.ToolSchema{
			Required: []string{"title", "starts_at", "ends_at"},
			Properties: map[string]tools.Property{
				"title":         {Type: "string"},
				"starts_at":     {Type: "integer", Description: "unix seconds"},
				"ends_at":       {Type: "integer", Description: "unix seconds"},
				"location":      {Type: "string"},
				"calendar_name": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			title, err := argString(args, "title")
			if err != nil {
				return "", err
			}
			startsAt, err := argInt64(args, "starts_at")
			if err != nil {
				return "", err
			}
			endsAt, err := argInt64(args, "ends_at")
			if err != nil {
				return "", err
			}
			location, _ := args["location"].(string)
			calendarName, _ := args["calendar_name"].(string)

			now := time.Now().Unix()
			d := store.Document{
				Kind: store.KindEvent, Title: title, Content: title,
				SourceApp: "kenny", SourceID: uuid.NewString(),
				CreatedAt: now, UpdatedAt: now, LastSeenAt: now,
			}
			d.ContentHash = store.ContentHash(d.Kind, d.Title, d.Content)

			result, err := s.UpsertDocument(d, ids.New)
			if err != nil {
				return "", err
			}
			if err := s.UpsertEvent(store.Event{
				DocumentID: result.Document.ID, StartsAt: startsAt, EndsAt: endsAt,
				Location: location, CalendarName: calendarName,
			}); err != nil {
				return "", err
			}
			return result.Document.ID, nil
		},
	}
}

func deleteEventTool(s *store.Store) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_event",
		Description: "Delete a calendar event by document id. Inverse of create_event.",
		Category:    tools.CategoryEvent,
		Mutates:     tools.Mutates,
		Schema: tools.ToolSchema{
			Required:   []string{"document_id"},
			Properties: map[string]tools.Property{"document_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := argString(args, "document_id")
			if err != nil {
				return "", err
			}
			if err := s.DeleteEvent(id); err != nil {
				return "", err
			}
			return id, nil
		},
	}
}

func searchTool(deps Deps) *tools.Tool {
	return &tools.Tool{
		Name:        "search",
		Description: "Search stored documents by keyword, ranked by relevance.",
		Category:    tools.CategoryQuery,
		Mutates:     tools.ReadOnly,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string"},
				"limit": {Type: "integer", Default: 10},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := argString(args, "query")
			if err != nil {
				return "", err
			}
			limit := 10
			if n, err := argInt64(args, "limit"); err == nil {
				limit = int(n)
			}

			if deps.Searcher != nil {
				hits, err := deps.Searcher.Search(ctx, query, limit)
				if err != nil {
					return "", err
				}
				return formatHits(hits), nil
			}

			kw, err := deps.Store.KeywordSearch(query, limit)
			if err != nil {
				return "", err
			}
			hits := make([]SearchHit, len(kw))
			for i, h := range kw {
				hits[i] = SearchHit{DocumentID: h.DocumentID, Title: h.Title, Snippet: h.Content, Score: h.Score}
			}
			return formatHits(hits), nil
		},
	}
}

func formatHits(hits []SearchHit) string {
	if len(hits) == 0 {
		return "no results"
	}
	out := ""
	for i, h := range hits {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s\t%.4f\t%s", h.DocumentID, h.Score, h.Title)
	}
	return out
}

func calendarListTool(s *store.Store) *tools.Tool {
	return &tools.Tool{
		Name:        "calendar_list",
		Description: "List calendar events starting within a time window.",
		Category:    tools.CategoryEvent,
		Mutates:     tools.ReadOnly,
		Schema: tools.ToolSchema{
			Required: []string{"from", "to"},
			Properties: map[string]tools.Property{
				"from": {Type: "integer", Description: "unix seconds, inclusive"},
				"to":   {Type: "integer", Description: "unix seconds, exclusive"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			from, err := argInt64(args, "from")
			if err != nil {
				return "", err
			}
			to, err := argInt64(args, "to")
			if err != nil {
				return "", err
			}
			rows, err := s.EventsInRange(from, to)
			if err != nil {
				return "", err
			}
			if len(rows) == 0 {
				return "no events", nil
			}
			out := ""
			for i, e := range rows {
				if i > 0 {
					out += "\n"
				}
				out += fmt.Sprintf("%s\t%d\t%d\t%s", e.DocumentID, e.StartsAt, e.EndsAt, e.Location)
			}
			return out, nil
		},
	}
}
