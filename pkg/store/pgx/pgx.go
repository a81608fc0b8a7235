package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

const defaultParallelEmbeds = 8

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults
}

// Store is a PostgreSQL vector store using pgvector for similarity search.
// Documents are upserted by id, so re-initialization after a rebuild
// replaces existing rows in place.
type Store struct {
	conn           pgxIConn
	aiClient       ai.Client
	parallelEmbeds int
}

type StoreParams struct {
	Conn           pgxIConn
	AIClient       ai.Client
	ParallelEmbeds int
}

// NewStore wraps an existing connection or pool. The schema must already be
// in place; see RunMigrations.
func NewStore(params StoreParams) *Store {
	parallel := params.ParallelEmbeds
	if parallel <= 0 {
		parallel = defaultParallelEmbeds
	}
	return &Store{
		conn:           params.Conn,
		aiClient:       params.AIClient,
		parallelEmbeds: parallel,
	}
}

// Initialize embeds all documents concurrently and upserts them in one batch.
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

	batch := &pgxv5.Batch{}
	for i, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}
		batch.Queue(`
			INSERT INTO hsn_documents (id, content, metadata, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding
		`, doc.ID, doc.Text, metadata, pgvector.NewVector(embeddings[i]))
	}

	results := s.conn.SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert documents: %w", err)
		}
	}

	logger.Info("[Store] Initialized pgvector index", "documents", len(docs))
	return nil
}

// Query embeds the text and ranks by cosine distance. The returned score is
// 1 minus the distance, so higher is more similar.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]common.Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryEmbedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM hsn_documents
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []common.Document
	for rows.Next() {
		var doc common.Document
		var metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &doc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// Get returns a single document by id.
func (s *Store) Get(ctx context.Context, id string) (common.Document, error) {
	var doc common.Document
	var metadata []byte
	err := s.conn.QueryRow(ctx, `
		SELECT id, content, metadata
		FROM hsn_documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Text, &metadata)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return common.Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return common.Document{}, fmt.Errorf("failed to unmarshal metadata for %s: %w", id, err)
	}
	return doc, nil
}

// Close is a no-op; the connection pool is owned by the caller.
func (s *Store) Close(ctx context.Context) error {
	return nil
}
