package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
)

var executeHash string

var executeCmd = &cobra.Command{
	Use:   "execute <plan_id>",
	Short: "Confirm and execute a previously created plan",
	Long: `Confirm and execute a plan created by "kenny plan". Mutating plans
require --hash to equal the operation hash emitted by "kenny plan"; a
missing or mismatched hash is rejected rather than silently executed.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().StringVar(&executeHash, "hash", "", "operation hash from the plan's dry-run output")
}

func runExecute(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()
	planID := args[0]

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	confirmed, err := e.Plan.Confirm(cmdContext(cmd), planID, executeHash)
	if err != nil {
		return emit(correlationID, nil, err)
	}

	executed, err := e.Plan.Execute(cmdContext(cmd), planID)
	if err != nil {
		return emit(confirmed.CorrelationID, nil, err)
	}
	return emit(executed.CorrelationID, executed, nil)
}
