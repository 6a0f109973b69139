package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kenny/internal/ids"
)

// result is the one JSON object every Kenny subcommand emits to stdout.
type result struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlation_id"`
	Payload       any    `json:"payload,omitempty"`
}

// emit prints a success or failure result and, on failure, makes the
// calling command return an error so cobra exits 1.
func emit(correlationID string, payload any, err error) error {
	r := result{CorrelationID: correlationID, Payload: payload}
	if err != nil {
		r.Status = "error"
		r.Error = err.Error()
	} else {
		r.Status = "ok"
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(r); encErr != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", encErr)
	}
	return err
}

func newCorrelationID() string { return ids.New() }

// cmdContext returns cmd's context, falling back to context.Background()
// for commands invoked directly in tests without going through
// Command.ExecuteContext.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
