package store

import (
	"context"
	"errors"

	"github.com/tarifflab/hsnatlas/pkg/common"
)

// ErrNotFound is returned by Get when no document carries the requested id.
var ErrNotFound = errors.New("document not found")

// VectorStore persists taxonomy documents with their embeddings and answers
// similarity queries. Initialize must complete before Query or Get are used;
// implementations embed the documents themselves so callers never handle raw
// vectors.
type VectorStore interface {
	// Initialize embeds and stores the given documents. Calling it again
	// replaces documents that share an id.
	Initialize(ctx context.Context, docs []common.Document) error

	// Query returns up to topK documents ranked by descending similarity
	// to the query text. Scores are cosine similarity in [0, 1] for
	// normalized inputs.
	Query(ctx context.Context, text string, topK int) ([]common.Document, error)

	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (common.Document, error)

	Close(ctx context.Context) error
}
