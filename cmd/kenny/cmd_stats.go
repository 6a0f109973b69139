package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report per-table row counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	st, err := e.Store.TableStats()
	if err != nil {
		return emit(correlationID, nil, err)
	}
	return emit(correlationID, st, nil)
}
