package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
	"kenny/internal/store"
)

var (
	searchLimit int
	searchTypes []string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Keyword search over the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	searchCmd.Flags().StringSliceVar(&searchTypes, "types", nil, "restrict to these document kinds (e.g. note,email)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	hits, err := e.Store.KeywordSearch(args[0], searchLimit)
	if err != nil {
		return emit(correlationID, nil, err)
	}

	if len(searchTypes) > 0 {
		hits = filterByKind(e.Store, hits, searchTypes)
	}

	return emit(correlationID, map[string]any{"results": hits}, nil)
}

func filterByKind(s *store.Store, hits []store.KeywordHit, types []string) []store.KeywordHit {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	out := make([]store.KeywordHit, 0, len(hits))
	for _, h := range hits {
		doc, err := s.GetDocument(h.DocumentID)
		if err != nil {
			continue
		}
		if want[string(doc.Kind)] {
			out = append(out, h)
		}
	}
	return out
}
