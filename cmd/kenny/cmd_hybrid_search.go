package main

import (
	"github.com/spf13/cobra"

	"kenny/internal/engine"
)

var (
	hybridLimit           int
	hybridBM25Weight      float64
	hybridEmbeddingWeight float64
)

var hybridSearchCmd = &cobra.Command{
	Use:   "hybrid_search <query>",
	Short: "Fused keyword and vector search over the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runHybridSearch,
}

func init() {
	hybridSearchCmd.Flags().IntVar(&hybridLimit, "limit", 10, "maximum results")
	hybridSearchCmd.Flags().Float64Var(&hybridBM25Weight, "bm25-weight", 0, "override the configured BM25 weight (0 keeps config default)")
	hybridSearchCmd.Flags().Float64Var(&hybridEmbeddingWeight, "embedding-weight", 0, "override the configured embedding weight (0 keeps config default)")
}

func runHybridSearch(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	if hybridBM25Weight > 0 {
		cfg.Search.BM25Weight = hybridBM25Weight
	}
	if hybridEmbeddingWeight > 0 {
		cfg.Search.EmbeddingWeight = hybridEmbeddingWeight
	}

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	result, err := e.SearchQuery(cmdContext(cmd), args[0], hybridLimit)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	return emit(correlationID, map[string]any{"results": result.Hits, "partial": result.Partial}, nil)
}
