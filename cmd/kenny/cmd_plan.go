package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
)

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Decompose a query into a plan without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	p, err := e.Run(cmdContext(cmd), args[0])
	if err != nil {
		return emit(correlationID, nil, err)
	}
	return emit(p.CorrelationID, p, nil)
}
