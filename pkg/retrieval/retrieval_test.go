package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/graph/memory"
)

// fakeVS returns preset documents and records the requested topK.
type fakeVS struct {
	docs          []common.Document
	err           error
	requestedTopK int
}

func (f *fakeVS) Initialize(ctx context.Context, docs []common.Document) error { return nil }

func (f *fakeVS) Query(ctx context.Context, text string, topK int) ([]common.Document, error) {
	f.requestedTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	docs := make([]common.Document, len(f.docs))
	copy(docs, f.docs)
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

func (f *fakeVS) Get(ctx context.Context, id string) (common.Document, error) {
	return common.Document{}, errors.New("not implemented")
}

func (f *fakeVS) Close(ctx context.Context) error { return nil }

// scoringAI answers rerank requests with a canned score for whichever
// document text appears in the prompt.
type scoringAI struct {
	scores map[string]float64
}

func (s *scoringAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (s *scoringAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	result, ok := out.(*relevanceScore)
	if !ok {
		return errors.New("unexpected output type")
	}
	for text, score := range s.scores {
		if strings.Contains(prompt, text) {
			result.Score = score
			return nil
		}
	}
	return errors.New("no canned score matches prompt")
}

func (s *scoringAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *scoringAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (s *scoringAI) ResetMetrics() {}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New("cosine", Params{})
	if err == nil {
		t.Fatal("expected error for unknown strategy name")
	}
}

func TestNew_Variants(t *testing.T) {
	aiClient := &scoringAI{}
	backend := memory.NewBackend()

	tests := []struct {
		name string
	}{
		{StrategyVector},
		{StrategyRerank},
		{StrategyGraphContext},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.name, Params{TopK: 5, AIClient: aiClient, Backend: backend})
			if err != nil {
				t.Fatalf("New(%s): %v", tc.name, err)
			}
			if s == nil {
				t.Fatal("expected a strategy")
			}
		})
	}
}

func TestVectorOnly_PassesTopK(t *testing.T) {
	vs := &fakeVS{docs: []common.Document{
		{ID: "hsn_1", Score: 0.9},
		{ID: "hsn_2", Score: 0.8},
		{ID: "hsn_3", Score: 0.7},
	}}

	docs, err := NewVectorOnly(2).Retrieve(context.Background(), "tyres", vs)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if vs.requestedTopK != 2 {
		t.Fatalf("expected topK 2 requested, got %d", vs.requestedTopK)
	}
	if len(docs) != 2 || docs[0].ID != "hsn_1" {
		t.Fatalf("expected store order preserved, got %v", docs)
	}
}

func TestVectorOnly_DefaultTopK(t *testing.T) {
	vs := &fakeVS{}
	if _, err := NewVectorOnly(0).Retrieve(context.Background(), "q", vs); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if vs.requestedTopK != defaultTopK {
		t.Fatalf("expected default topK %d, got %d", defaultTopK, vs.requestedTopK)
	}
}

func TestRerank_RequiresAIClient(t *testing.T) {
	if _, err := NewRerank(Params{TopK: 5}); err == nil {
		t.Fatal("expected error without ai client")
	}
}

func TestRerank_WidensRescoresAndTruncates(t *testing.T) {
	vs := &fakeVS{docs: []common.Document{
		{ID: "hsn_1", Text: "tyres for cars", Score: 0.95},
		{ID: "hsn_2", Text: "rubber latex", Score: 0.90},
		{ID: "hsn_3", Text: "conveyor belts", Score: 0.85},
		{ID: "hsn_4", Text: "surgical gloves", Score: 0.80},
	}}
	aiClient := &scoringAI{scores: map[string]float64{
		"tyres for cars":  0.2,
		"rubber latex":    0.9,
		"conveyor belts":  0.6,
		"surgical gloves": 0.1,
	}}

	s, err := NewRerank(Params{TopK: 2, Multiplier: 3, AIClient: aiClient})
	if err != nil {
		t.Fatalf("NewRerank: %v", err)
	}

	docs, err := s.Retrieve(context.Background(), "liquid rubber", vs)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if vs.requestedTopK != 6 {
		t.Fatalf("expected widened first stage of 6, got %d", vs.requestedTopK)
	}
	if len(docs) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(docs))
	}
	if docs[0].ID != "hsn_2" || docs[1].ID != "hsn_3" {
		t.Fatalf("expected rerank order hsn_2, hsn_3; got %s, %s", docs[0].ID, docs[1].ID)
	}
	if docs[0].Score != 0.9 {
		t.Fatalf("expected vector score overwritten with 0.9, got %v", docs[0].Score)
	}
}

func TestRerank_ClampsScores(t *testing.T) {
	vs := &fakeVS{docs: []common.Document{
		{ID: "hsn_1", Text: "alpha"},
		{ID: "hsn_2", Text: "beta"},
	}}
	aiClient := &scoringAI{scores: map[string]float64{
		"alpha": 1.7,
		"beta":  -0.3,
	}}

	s, err := NewRerank(Params{TopK: 2, AIClient: aiClient})
	if err != nil {
		t.Fatalf("NewRerank: %v", err)
	}

	docs, err := s.Retrieve(context.Background(), "q", vs)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs[0].Score != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", docs[0].Score)
	}
	if docs[1].Score != 0.0 {
		t.Fatalf("expected clamp to 0.0, got %v", docs[1].Score)
	}
}

func TestRerank_EmptyCandidates(t *testing.T) {
	s, err := NewRerank(Params{TopK: 2, AIClient: &scoringAI{}})
	if err != nil {
		t.Fatalf("NewRerank: %v", err)
	}
	docs, err := s.Retrieve(context.Background(), "q", &fakeVS{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs != nil {
		t.Fatalf("expected nil for empty candidate set, got %v", docs)
	}
}

func taxonomyBackend(t *testing.T) *memory.Backend {
	t.Helper()
	ctx := context.Background()
	b := memory.NewBackend()

	nodes := []common.GraphNode{
		{ID: graph.ChapterID("40"), Label: common.LabelChapter, Description: "Rubber and articles thereof"},
		{ID: graph.HeadingID("4011"), Label: common.LabelHeading, Description: "New pneumatic tyres, of rubber"},
		{ID: graph.SubheadingID("401110"), Label: common.LabelSubheading, Description: "Of a kind used on motor cars"},
		{ID: graph.CodeID("40111010"), Label: common.LabelCode, Description: "New pneumatic tyres for motor cars"},
	}
	for _, n := range nodes {
		if _, err := b.AddNode(ctx, n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	edges := []common.GraphEdge{
		{SourceID: nodes[0].ID, TargetID: nodes[1].ID, Relation: common.RelHasHeading},
		{SourceID: nodes[1].ID, TargetID: nodes[2].ID, Relation: common.RelHasSubheading},
		{SourceID: nodes[2].ID, TargetID: nodes[3].ID, Relation: common.RelHasCode},
	}
	for _, e := range edges {
		if _, err := b.AddEdge(ctx, e); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return b
}

// countingBackend counts hierarchy traversals to observe cache behavior.
type countingBackend struct {
	*memory.Backend
	traversals int
}

func (c *countingBackend) AncestorPath(ctx context.Context, id string) ([]common.GraphNode, error) {
	c.traversals++
	return c.Backend.AncestorPath(ctx, id)
}

// blindBackend hides the traversal capability of the wrapped backend.
type blindBackend struct {
	inner *memory.Backend
}

func (b *blindBackend) AddNode(ctx context.Context, node common.GraphNode) (bool, error) {
	return b.inner.AddNode(ctx, node)
}

func (b *blindBackend) AddEdge(ctx context.Context, edge common.GraphEdge) (bool, error) {
	return b.inner.AddEdge(ctx, edge)
}

func (b *blindBackend) Neighbors(ctx context.Context, id string, direction graph.Direction) ([]common.GraphNode, error) {
	return b.inner.Neighbors(ctx, id, direction)
}

func (b *blindBackend) Subgraph(ctx context.Context, id string, depth int) (*graph.Subgraph, error) {
	return b.inner.Subgraph(ctx, id, depth)
}

func (b *blindBackend) CreateIndexes(ctx context.Context) error { return b.inner.CreateIndexes(ctx) }

func (b *blindBackend) Statistics(ctx context.Context) (graph.Statistics, error) {
	return b.inner.Statistics(ctx)
}

func (b *blindBackend) ExportGraphML(ctx context.Context, path string) error {
	return b.inner.ExportGraphML(ctx, path)
}

func (b *blindBackend) Close(ctx context.Context) error { return b.inner.Close(ctx) }

func graphContextFixture(t *testing.T, backend graph.Backend) (*GraphContext, *fakeVS) {
	t.Helper()
	vs := &fakeVS{docs: []common.Document{
		{ID: "hsn_40111010", Text: "tyres for cars", Metadata: common.Record{HSNCode: "40111010"}},
	}}
	aiClient := &scoringAI{scores: map[string]float64{"tyres for cars": 0.9}}

	inner, err := NewRerank(Params{TopK: 3, AIClient: aiClient})
	if err != nil {
		t.Fatalf("NewRerank: %v", err)
	}
	s, err := NewGraphContext(inner, backend, 0)
	if err != nil {
		t.Fatalf("NewGraphContext: %v", err)
	}
	return s, vs
}

func TestGraphContext_AttachesAncestorPath(t *testing.T) {
	s, vs := graphContextFixture(t, taxonomyBackend(t))

	docs, err := s.Retrieve(context.Background(), "car tyres", vs)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	want := "Chapter: Rubber and articles thereof > " +
		"Heading: New pneumatic tyres, of rubber > " +
		"Subheading: Of a kind used on motor cars"
	if docs[0].GraphContext != want {
		t.Fatalf("unexpected graph context:\n  got  %q\n  want %q", docs[0].GraphContext, want)
	}
}

func TestGraphContext_CachesPaths(t *testing.T) {
	backend := &countingBackend{Backend: taxonomyBackend(t)}
	s, vs := graphContextFixture(t, backend)

	ctx := context.Background()
	if _, err := s.Retrieve(ctx, "car tyres", vs); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if _, err := s.Retrieve(ctx, "car tyres again", vs); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if backend.traversals != 1 {
		t.Fatalf("expected 1 traversal with cache hit, got %d", backend.traversals)
	}
}

func TestGraphContext_PlaceholderWithoutTraverser(t *testing.T) {
	s, vs := graphContextFixture(t, &blindBackend{inner: taxonomyBackend(t)})

	docs, err := s.Retrieve(context.Background(), "car tyres", vs)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if docs[0].GraphContext != contextUnavailable {
		t.Fatalf("expected placeholder context, got %q", docs[0].GraphContext)
	}
}
