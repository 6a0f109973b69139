package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
	"kenny/internal/ingest"
)

var (
	ingestFull    bool
	ingestSources []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingest coordinator over registered sources",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFull, "full", false, "clear and re-ingest each source from scratch")
	ingestCmd.Flags().StringSliceVar(&ingestSources, "sources", nil, "limit ingest to these source apps")
}

func runIngest(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	// No concrete Extractor implementations ship with this repo; extractors
	// are per-integration plugins registered by whatever embeds Kenny. With
	// none wired in, ingest reports an empty, successful run.
	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	mode := ingest.ModeIncremental
	if ingestFull {
		mode = ingest.ModeFull
	}

	stats := e.Ingest(cmdContext(cmd), mode, ingestSources)
	return emit(correlationID, map[string]any{"mode": mode, "sources": stats}, nil)
}
