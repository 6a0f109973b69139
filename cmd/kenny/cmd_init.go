package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or open the store and report Kenny's version and the store path",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	return emit(correlationID, map[string]any{
		"version":    cfg.Version,
		"store_path": cfg.Store.Path,
	}, nil)
}
