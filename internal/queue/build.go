package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tarifflab/hsnatlas/internal/storage"
	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProcessBuild handles one rebuild job: dataset load, graph construction
// with enrichment, integrity validation, and vector store indexing. The
// vector store is only re-indexed after the graph build fully succeeds, so
// retrieval never observes a half-built graph with a fresh index.
func ProcessBuild(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.Client,
	backend graph.Backend,
	vs store.VectorStore,
	msg string,
) error {
	data := new(BuildGraphMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to parse build message: %w", err)
	}
	if data.DatasetLocation == "" {
		return fmt.Errorf("build message missing dataset location")
	}

	records, err := storage.LoadRecords(ctx, s3Client, data.DatasetLocation)
	if err != nil {
		return err
	}

	builder := graph.NewBuilder(graph.NewBuilderParams{Backend: backend})
	if err := builder.Build(ctx, records); err != nil {
		return err
	}
	if err := builder.EnrichSiblings(ctx, records); err != nil {
		return err
	}
	if data.EnrichSimilarity {
		if err := builder.EnrichSimilarity(ctx, records, aiClient, data.SimilarityThreshold); err != nil {
			return err
		}
	}

	violations, err := builder.ValidateIntegrity(ctx, records)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		logger.Warn("[Queue] Graph built with integrity violations", "count", len(violations))
	}

	if err := backend.CreateIndexes(ctx); err != nil {
		return err
	}

	if err := vs.Initialize(ctx, common.Documents(records)); err != nil {
		return err
	}

	stats, err := backend.Statistics(ctx)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Build complete", "nodes", stats.NodeCount, "edges", stats.EdgeCount, "documents", len(records))
	return nil
}
