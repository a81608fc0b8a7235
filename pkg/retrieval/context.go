package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/store"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheSize = 128

	// Shown when the graph backend cannot be traversed directly.
	contextUnavailable = "not available"
)

// GraphContext decorates a re-ranker with taxonomy context: every candidate
// gets its root-to-leaf ancestor path attached as a human-readable string.
// Paths are immutable once the graph is built, so they are cached in a
// bounded LRU shared across sessions.
//
// Traversal needs the backend's Traverser capability. Backends without it
// (the graph lives in an external database) degrade to a placeholder
// instead of failing the query.
type GraphContext struct {
	inner     *Rerank
	traverser graph.Traverser
	cache     *lru.Cache[string, string]
}

func NewGraphContext(inner *Rerank, backend graph.Backend, cacheSize int) (*GraphContext, error) {
	if inner == nil {
		return nil, fmt.Errorf("graph context strategy requires a rerank strategy")
	}
	if cacheSize < defaultCacheSize {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to init ancestor path cache: %w", err)
	}

	s := &GraphContext{
		inner: inner,
		cache: cache,
	}
	if traverser, ok := backend.(graph.Traverser); ok {
		s.traverser = traverser
	} else {
		logger.Warn("[Retrieval] Graph backend does not support direct traversal, context degrades to placeholder")
	}
	return s, nil
}

func (s *GraphContext) Retrieve(ctx context.Context, query string, vs store.VectorStore) ([]common.Document, error) {
	docs, err := s.inner.Retrieve(ctx, query, vs)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		graphContext, err := s.ancestorContext(ctx, docs[i].Metadata.HSNCode)
		if err != nil {
			return nil, fmt.Errorf("failed to attach graph context for %s: %w", docs[i].ID, err)
		}
		docs[i].GraphContext = graphContext
	}
	return docs, nil
}

func (s *GraphContext) ancestorContext(ctx context.Context, hsnCode string) (string, error) {
	if s.traverser == nil {
		return contextUnavailable, nil
	}

	nodeID := graph.CodeID(hsnCode)
	if cached, ok := s.cache.Get(nodeID); ok {
		return cached, nil
	}

	path, err := s.traverser.AncestorPath(ctx, nodeID)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(path))
	for _, node := range path {
		if node.Label == common.LabelCode {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", node.Label, node.Description))
	}
	graphContext := strings.Join(parts, " > ")

	s.cache.Add(nodeID, graphContext)
	return graphContext, nil
}
