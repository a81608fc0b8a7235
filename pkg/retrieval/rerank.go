package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	defaultMultiplier     = 4
	defaultParallelScores = 8
)

const rerankPrompt = `You are scoring how relevant a commodity description is to a user query.

Query: %s

Commodity description: %s

Return a relevance score between 0.0 (unrelated) and 1.0 (exact match).`

type relevanceScore struct {
	Score float64 `json:"score" jsonschema_description:"Relevance of the commodity description to the query, 0.0 to 1.0"`
}

// Rerank widens the first-stage vector search to top-k times a multiplier,
// then re-scores every candidate against the query with a pairwise relevance
// model and keeps the best top-k. Vector similarity acts as a cheap recall
// filter; the expensive pairwise model only sees the small candidate set.
type Rerank struct {
	aiClient       ai.Client
	topK           int
	multiplier     int
	parallelScores int
}

func NewRerank(params Params) (*Rerank, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("rerank strategy requires an ai client")
	}
	topK := params.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	multiplier := params.Multiplier
	if multiplier <= 0 {
		multiplier = defaultMultiplier
	}
	parallel := params.ParallelScores
	if parallel <= 0 {
		parallel = defaultParallelScores
	}
	return &Rerank{
		aiClient:       params.AIClient,
		topK:           topK,
		multiplier:     multiplier,
		parallelScores: parallel,
	}, nil
}

func (s *Rerank) Retrieve(ctx context.Context, query string, vs store.VectorStore) ([]common.Document, error) {
	candidates, err := vs.Query(ctx, query, s.topK*s.multiplier)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelScores)
	for i := range candidates {
		group.Go(func() error {
			score, err := s.scorePair(groupCtx, query, candidates[i].Text)
			if err != nil {
				return fmt.Errorf("failed to rerank %s: %w", candidates[i].ID, err)
			}
			candidates[i].Score = score
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}
	return candidates, nil
}

func (s *Rerank) scorePair(ctx context.Context, query, text string) (float64, error) {
	var result relevanceScore
	err := s.aiClient.GenerateCompletionWithFormat(
		ctx,
		"relevance_score",
		"Pairwise relevance of a commodity description to a query",
		fmt.Sprintf(rerankPrompt, query, text),
		&result,
	)
	if err != nil {
		return 0, err
	}
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result.Score, nil
}
