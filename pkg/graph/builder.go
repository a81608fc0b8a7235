package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const missingDescription = "not specified"

// Builder constructs and enriches the taxonomy graph on top of any Backend.
// All operations are idempotent by construction of the backend contract, so
// the builder is safe to run repeatedly over the same record set.
type Builder struct {
	backend        Backend
	parallelEmbeds int
}

// NewBuilderParams configures a Builder.
type NewBuilderParams struct {
	Backend Backend

	// ParallelEmbeds bounds concurrent embedding requests during
	// similarity enrichment. Defaults to 8.
	ParallelEmbeds int
}

// NewBuilder creates a Builder operating on the given backend.
func NewBuilder(params NewBuilderParams) *Builder {
	parallel := params.ParallelEmbeds
	if parallel <= 0 {
		parallel = 8
	}
	return &Builder{
		backend:        params.Backend,
		parallelEmbeds: parallel,
	}
}

// Build constructs the hierarchical graph from the flat record set. For
// every record it adds the chapter, heading, subheading, and code nodes and
// the three hierarchy edges between them, in hierarchy order.
func (b *Builder) Build(ctx context.Context, records []common.Record) error {
	logger.Info("[Graph] Building hierarchy", "records", len(records))

	created := 0
	for _, rec := range records {
		n, err := b.addRecord(ctx, rec)
		if err != nil {
			return fmt.Errorf("failed to add record %s: %w", rec.HSNCode, err)
		}
		created += n
	}

	logger.Info("[Graph] Hierarchy build completed", "new_nodes", created)
	return nil
}

func (b *Builder) addRecord(ctx context.Context, rec common.Record) (int, error) {
	nodes := []common.GraphNode{
		{ID: ChapterID(rec.Chapter), Label: common.LabelChapter, Description: orMissing(rec.ChapterDescription)},
		{ID: HeadingID(rec.Heading), Label: common.LabelHeading, Description: orMissing(rec.HeadingDescription)},
		{ID: SubheadingID(rec.Subheading), Label: common.LabelSubheading, Description: orMissing(rec.SubheadingDescription)},
		{ID: CodeID(rec.HSNCode), Label: common.LabelCode, Description: orMissing(rec.ItemDescription)},
	}

	created := 0
	for _, node := range nodes {
		isNew, err := b.backend.AddNode(ctx, node)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}

	edges := []common.GraphEdge{
		{SourceID: nodes[0].ID, TargetID: nodes[1].ID, Relation: common.RelHasHeading},
		{SourceID: nodes[1].ID, TargetID: nodes[2].ID, Relation: common.RelHasSubheading},
		{SourceID: nodes[2].ID, TargetID: nodes[3].ID, Relation: common.RelHasCode},
	}
	for _, edge := range edges {
		if _, err := b.backend.AddEdge(ctx, edge); err != nil {
			return created, err
		}
	}

	return created, nil
}

// EnrichSiblings adds symmetric SIBLING_OF edges between every pair of code
// nodes sharing a subheading parent. The pass is quadratic per group, which
// stays cheap because sibling groups are bounded by taxonomy density.
func (b *Builder) EnrichSiblings(ctx context.Context, records []common.Record) error {
	codesBySubheading := make(map[string][]string)
	order := make([]string, 0)
	for _, rec := range records {
		subID := SubheadingID(rec.Subheading)
		if _, ok := codesBySubheading[subID]; !ok {
			order = append(order, subID)
		}
		codesBySubheading[subID] = append(codesBySubheading[subID], CodeID(rec.HSNCode))
	}

	added := 0
	for _, subID := range order {
		codes := codesBySubheading[subID]
		if len(codes) < 2 {
			continue
		}
		for i := 0; i < len(codes); i++ {
			for j := i + 1; j < len(codes); j++ {
				pair := []common.GraphEdge{
					{SourceID: codes[i], TargetID: codes[j], Relation: common.RelSiblingOf},
					{SourceID: codes[j], TargetID: codes[i], Relation: common.RelSiblingOf},
				}
				for _, edge := range pair {
					isNew, err := b.backend.AddEdge(ctx, edge)
					if err != nil {
						return fmt.Errorf("failed to add sibling edge: %w", err)
					}
					if isNew {
						added++
					}
				}
			}
		}
	}

	logger.Info("[Graph] Sibling enrichment completed", "new_edges", added)
	return nil
}

// EnrichSimilarity embeds every item description and adds SIMILAR_TO edges,
// carrying the similarity score, for every pair strictly above threshold.
// This is the most expensive build step; callers skip it entirely when
// embeddings are disabled.
func (b *Builder) EnrichSimilarity(
	ctx context.Context,
	records []common.Record,
	embedder ai.Client,
	threshold float64,
) error {
	logger.Info("[Graph] Similarity enrichment", "records", len(records), "threshold", threshold)

	embeddings := make([][]float32, len(records))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parallelEmbeds)
	for i := range records {
		idx := i
		eg.Go(func() error {
			vec, err := embedder.GenerateEmbedding(gCtx, []byte(records[idx].ItemDescription))
			if err != nil {
				return fmt.Errorf("failed to embed description for %s: %w", records[idx].HSNCode, err)
			}
			embeddings[idx] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	added := 0
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			score := cosineSimilarity(embeddings[i], embeddings[j])
			if score <= threshold {
				continue
			}
			isNew, err := b.backend.AddEdge(ctx, common.GraphEdge{
				SourceID:   CodeID(records[i].HSNCode),
				TargetID:   CodeID(records[j].HSNCode),
				Relation:   common.RelSimilarTo,
				Properties: map[string]any{"score": score},
			})
			if err != nil {
				return fmt.Errorf("failed to add similarity edge: %w", err)
			}
			if isNew {
				added++
			}
		}
	}

	logger.Info("[Graph] Similarity enrichment completed", "new_edges", added)
	return nil
}

// Violation describes one integrity failure found by ValidateIntegrity.
type Violation struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// ValidateIntegrity checks that every code node from the record set has
// exactly one Subheading parent. It returns the violation list instead of
// failing: integrity problems are surfaced as warnings, never abort a
// serving session.
func (b *Builder) ValidateIntegrity(ctx context.Context, records []common.Record) ([]Violation, error) {
	violations := make([]Violation, 0)

	for _, rec := range records {
		codeID := CodeID(rec.HSNCode)
		parents, err := b.backend.Neighbors(ctx, codeID, DirectionIn)
		if err != nil {
			return nil, fmt.Errorf("failed to read parents of %s: %w", codeID, err)
		}

		subheadingParents := 0
		for _, p := range parents {
			if p.Label == common.LabelSubheading {
				subheadingParents++
			}
		}

		switch {
		case subheadingParents == 0:
			violations = append(violations, Violation{NodeID: codeID, Reason: "no subheading parent"})
		case subheadingParents > 1:
			violations = append(violations, Violation{NodeID: codeID, Reason: "multiple subheading parents"})
		}
	}

	for _, v := range violations {
		logger.Warn("[Graph] Integrity violation", "node", v.NodeID, "reason", v.Reason)
	}
	return violations, nil
}

func orMissing(desc string) string {
	if desc == "" {
		return missingDescription
	}
	return desc
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
