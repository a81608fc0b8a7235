package retrieval

import (
	"context"
	"fmt"

	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/store"
)

const defaultTopK = 5

// VectorOnly answers queries with a single vector store similarity search.
type VectorOnly struct {
	topK int
}

func NewVectorOnly(topK int) *VectorOnly {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &VectorOnly{topK: topK}
}

func (s *VectorOnly) Retrieve(ctx context.Context, query string, vs store.VectorStore) ([]common.Document, error) {
	docs, err := vs.Query(ctx, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	return docs, nil
}
