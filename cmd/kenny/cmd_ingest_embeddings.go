package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kenny/internal/embedding"
	"kenny/internal/engine"
	"kenny/internal/store"
	"kenny/internal/vectorindex"
)

var (
	embeddingsForce bool
	embeddingsModel string
)

var ingestEmbeddingsCmd = &cobra.Command{
	Use:   "ingest_embeddings",
	Short: "Regenerate embeddings for chunks missing (or, with --force, all chunks)",
	RunE:  runIngestEmbeddings,
}

func init() {
	ingestEmbeddingsCmd.Flags().BoolVar(&embeddingsForce, "force", false, "recompute embeddings even if already present")
	ingestEmbeddingsCmd.Flags().StringVar(&embeddingsModel, "model", "", "override the configured embedding model")
}

func runIngestEmbeddings(cmd *cobra.Command, args []string) error {
	correlationID := newCorrelationID()

	if embeddingsModel != "" {
		cfg.Embedding.OllamaModel = embeddingsModel
		cfg.Embedding.GenAIModel = embeddingsModel
	}

	e, err := engine.New(cfg, nil)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	defer e.Close()

	if e.Embedder == nil {
		return emit(correlationID, nil, fmt.Errorf("no embedding backend configured"))
	}

	modelID := engine.ModelID(cfg)
	if embeddingsForce {
		if err := dropAllEmbeddings(e.Store, modelID); err != nil {
			return emit(correlationID, nil, err)
		}
	}

	processed, err := regenerateEmbeddings(cmdContext(cmd), e.Store, e.Embedder, e.VectorIndex, modelID)
	if err != nil {
		return emit(correlationID, nil, err)
	}
	return emit(correlationID, map[string]any{"model": modelID, "chunks_embedded": processed}, nil)
}

func dropAllEmbeddings(s *store.Store, modelID string) error {
	rows, err := s.AllEmbeddings(modelID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := s.DeleteEmbedding(r.ChunkID); err != nil {
			return err
		}
	}
	return nil
}

func regenerateEmbeddings(ctx context.Context, s *store.Store, embedder embedding.EmbeddingEngine, idx vectorindex.Index, modelID string) (int, error) {
	const batchSize = 256
	processed := 0
	for {
		chunks, err := s.ChunksWithoutEmbedding(modelID, batchSize)
		if err != nil {
			return processed, err
		}
		if len(chunks) == 0 {
			return processed, nil
		}
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return processed, ctx.Err()
			default:
			}
			vec, err := embedder.Embed(ctx, c.Text)
			if err != nil {
				return processed, fmt.Errorf("embed chunk %s: %w", c.ID, err)
			}
			if err := idx.Put(ctx, c.ID, vec); err != nil {
				return processed, fmt.Errorf("index chunk %s: %w", c.ID, err)
			}
			processed++
		}
	}
}
