package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/store"

	"golang.org/x/sync/errgroup"
)

const defaultParallelEmbeds = 8

type entry struct {
	doc       common.Document
	embedding []float32
}

// Store is an embedded vector store backed by a brute-force cosine scan.
// It embeds documents through the configured ai client at initialization
// and keeps everything in process memory. Suited for tests and datasets
// in the low tens of thousands of documents.
type Store struct {
	aiClient       ai.Client
	parallelEmbeds int

	lock    sync.RWMutex
	entries map[string]entry
	order   []string
}

type StoreParams struct {
	AIClient       ai.Client
	ParallelEmbeds int
}

func NewStore(params StoreParams) *Store {
	parallel := params.ParallelEmbeds
	if parallel <= 0 {
		parallel = defaultParallelEmbeds
	}
	return &Store{
		aiClient:       params.AIClient,
		parallelEmbeds: parallel,
		entries:        make(map[string]entry),
	}
}

// Initialize embeds all documents concurrently and indexes them by id.
// Re-initializing with an already known id replaces that document.
func (s *Store) Initialize(ctx context.Context, docs []common.Document) error {
	embeddings := make([][]float32, len(docs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelEmbeds)
	for i, doc := range docs {
		group.Go(func() error {
			embedding, err := s.aiClient.GenerateEmbedding(groupCtx, []byte(doc.Text))
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			embeddings[i] = embedding
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for i, doc := range docs {
		if _, exists := s.entries[doc.ID]; !exists {
			s.order = append(s.order, doc.ID)
		}
		s.entries[doc.ID] = entry{doc: doc, embedding: embeddings[i]}
	}

	logger.Info("[Store] Initialized in-memory vector index", "documents", len(s.entries))
	return nil
}

// Query embeds the text and scans every entry, scoring by cosine
// similarity. Ties break on document id to keep results deterministic.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]common.Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryEmbedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	results := make([]common.Document, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		doc := e.doc
		doc.Score = cosineSimilarity(queryEmbedding, e.embedding)
		results = append(results, doc)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns the stored document by id.
func (s *Store) Get(ctx context.Context, id string) (common.Document, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return common.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return e.doc, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = make(map[string]entry)
	s.order = nil
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
