// Package retrieval implements the pluggable strategies that turn a free-text
// query into a ranked candidate list: plain vector search, pairwise
// re-ranking, and graph-context enrichment. Strategies compose by
// decoration, so the graph-contextual strategy wraps the re-ranker which
// wraps the vector search.
package retrieval

import (
	"context"
	"fmt"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/store"
)

const (
	StrategyVector       = "vector"
	StrategyRerank       = "rerank"
	StrategyGraphContext = "graph_context"
)

// Strategy retrieves candidate documents for a query. Results are ordered by
// descending score and never exceed the configured top-k.
type Strategy interface {
	Retrieve(ctx context.Context, query string, vs store.VectorStore) ([]common.Document, error)
}

// Params carries everything any strategy variant can need. Fields unused by
// the selected variant are ignored.
type Params struct {
	TopK int

	// Rerank and graph-context.
	AIClient       ai.Client
	Multiplier     int
	ParallelScores int

	// Graph-context only.
	Backend   graph.Backend
	CacheSize int
}

// New builds the named strategy. An unknown name is a configuration error;
// callers treat it as fatal at startup.
func New(name string, params Params) (Strategy, error) {
	switch name {
	case StrategyVector:
		return NewVectorOnly(params.TopK), nil
	case StrategyRerank:
		return NewRerank(params)
	case StrategyGraphContext:
		rerank, err := NewRerank(params)
		if err != nil {
			return nil, err
		}
		return NewGraphContext(rerank, params.Backend, params.CacheSize)
	default:
		return nil, fmt.Errorf("unknown retrieval strategy: %s", name)
	}
}
