package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
)

func node(id string, label common.NodeLabel) common.GraphNode {
	return common.GraphNode{ID: id, Label: label, Description: "desc " + id}
}

func mustAddNode(t *testing.T, b *Backend, n common.GraphNode) {
	t.Helper()
	if _, err := b.AddNode(context.Background(), n); err != nil {
		t.Fatalf("AddNode(%s): %v", n.ID, err)
	}
}

func mustAddEdge(t *testing.T, b *Backend, source, target string, rel common.Relation) {
	t.Helper()
	_, err := b.AddEdge(context.Background(), common.GraphEdge{
		SourceID: source, TargetID: target, Relation: rel,
	})
	if err != nil {
		t.Fatalf("AddEdge(%s -> %s): %v", source, target, err)
	}
}

// hierarchyFixture builds chap_40 -> head_4011 -> sub_401110 -> code_40111010
// plus a sibling code under the same subheading.
func hierarchyFixture(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	mustAddNode(t, b, node("chap_40", common.LabelChapter))
	mustAddNode(t, b, node("head_4011", common.LabelHeading))
	mustAddNode(t, b, node("sub_401110", common.LabelSubheading))
	mustAddNode(t, b, node("code_40111010", common.LabelCode))
	mustAddNode(t, b, node("code_40111020", common.LabelCode))
	mustAddEdge(t, b, "chap_40", "head_4011", common.RelHasHeading)
	mustAddEdge(t, b, "head_4011", "sub_401110", common.RelHasSubheading)
	mustAddEdge(t, b, "sub_401110", "code_40111010", common.RelHasCode)
	mustAddEdge(t, b, "sub_401110", "code_40111020", common.RelHasCode)
	mustAddEdge(t, b, "code_40111010", "code_40111020", common.RelSiblingOf)
	mustAddEdge(t, b, "code_40111020", "code_40111010", common.RelSiblingOf)
	return b
}

func TestAddNode_CreatedOnceOnly(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()

	created, err := b.AddNode(ctx, node("chap_40", common.LabelChapter))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !created {
		t.Fatal("expected first insert to report created")
	}

	created, err = b.AddNode(ctx, node("chap_40", common.LabelChapter))
	if err != nil {
		t.Fatalf("expected duplicate insert to succeed, got %v", err)
	}
	if created {
		t.Fatal("expected duplicate insert to report not created")
	}

	stats, err := b.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.NodeCount != 1 {
		t.Fatalf("expected 1 node, got %d", stats.NodeCount)
	}
}

func TestAddEdge_CreatedOnceOnly(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	mustAddNode(t, b, node("chap_40", common.LabelChapter))
	mustAddNode(t, b, node("head_4011", common.LabelHeading))

	edge := common.GraphEdge{SourceID: "chap_40", TargetID: "head_4011", Relation: common.RelHasHeading}
	created, err := b.AddEdge(ctx, edge)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !created {
		t.Fatal("expected first insert to report created")
	}

	created, err = b.AddEdge(ctx, edge)
	if err != nil {
		t.Fatalf("expected duplicate insert to succeed, got %v", err)
	}
	if created {
		t.Fatal("expected duplicate insert to report not created")
	}
}

func TestAddEdge_DistinctRelationIsNewEdge(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	mustAddNode(t, b, node("a", common.LabelCode))
	mustAddNode(t, b, node("b", common.LabelCode))
	mustAddEdge(t, b, "a", "b", common.RelSiblingOf)

	created, err := b.AddEdge(ctx, common.GraphEdge{SourceID: "a", TargetID: "b", Relation: common.RelSimilarTo})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !created {
		t.Fatal("expected edge with different relation to be created")
	}
}

func TestAddEdge_MissingEndpoint(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	mustAddNode(t, b, node("chap_40", common.LabelChapter))

	_, err := b.AddEdge(ctx, common.GraphEdge{SourceID: "chap_40", TargetID: "head_4011", Relation: common.RelHasHeading})
	if !errors.Is(err, graph.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}

	_, err = b.AddEdge(ctx, common.GraphEdge{SourceID: "missing", TargetID: "chap_40", Relation: common.RelHasHeading})
	if !errors.Is(err, graph.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestNeighbors_Directional(t *testing.T) {
	ctx := context.Background()
	b := hierarchyFixture(t)

	out, err := b.Neighbors(ctx, "sub_401110", graph.DirectionOut)
	if err != nil {
		t.Fatalf("Neighbors out: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing neighbors, got %d", len(out))
	}
	if out[0].ID != "code_40111010" || out[1].ID != "code_40111020" {
		t.Fatalf("expected insertion order, got %s then %s", out[0].ID, out[1].ID)
	}

	in, err := b.Neighbors(ctx, "sub_401110", graph.DirectionIn)
	if err != nil {
		t.Fatalf("Neighbors in: %v", err)
	}
	if len(in) != 1 || in[0].ID != "head_4011" {
		t.Fatalf("expected single incoming neighbor head_4011, got %v", in)
	}
}

func TestNeighbors_DeduplicatesAcrossRelations(t *testing.T) {
	ctx := context.Background()
	b := NewBackend()
	mustAddNode(t, b, node("a", common.LabelCode))
	mustAddNode(t, b, node("b", common.LabelCode))
	mustAddEdge(t, b, "a", "b", common.RelSiblingOf)
	mustAddEdge(t, b, "a", "b", common.RelSimilarTo)

	out, err := b.Neighbors(ctx, "a", graph.DirectionOut)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected parallel edges to yield one neighbor, got %d", len(out))
	}
}

func TestNeighbors_UnknownNode(t *testing.T) {
	b := NewBackend()
	_, err := b.Neighbors(context.Background(), "nope", graph.DirectionOut)
	if !errors.Is(err, graph.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestSubgraph_DepthBounded(t *testing.T) {
	ctx := context.Background()
	b := hierarchyFixture(t)

	sub, err := b.Subgraph(ctx, "sub_401110", 1)
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	// One hop in either direction: the heading above plus both codes below.
	wantNodes := map[string]bool{
		"sub_401110": true, "head_4011": true,
		"code_40111010": true, "code_40111020": true,
	}
	if len(sub.Nodes) != len(wantNodes) {
		t.Fatalf("expected %d nodes, got %d", len(wantNodes), len(sub.Nodes))
	}
	for _, n := range sub.Nodes {
		if !wantNodes[n.ID] {
			t.Fatalf("unexpected node %s in depth-1 subgraph", n.ID)
		}
	}
	// Induced edges include the sibling pair between the two codes.
	if len(sub.Edges) != 5 {
		t.Fatalf("expected 5 induced edges, got %d", len(sub.Edges))
	}

	full, err := b.Subgraph(ctx, "sub_401110", 3)
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	if len(full.Nodes) != 5 {
		t.Fatalf("expected the full graph at depth 3, got %d nodes", len(full.Nodes))
	}
	if len(full.Edges) != 6 {
		t.Fatalf("expected all 6 edges at depth 3, got %d", len(full.Edges))
	}
}

func TestSubgraph_UnknownRoot(t *testing.T) {
	b := hierarchyFixture(t)
	_, err := b.Subgraph(context.Background(), "code_99999999", 2)
	if !errors.Is(err, graph.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestAncestorPath_RootToLeaf(t *testing.T) {
	b := hierarchyFixture(t)

	path, err := b.AncestorPath(context.Background(), "code_40111010")
	if err != nil {
		t.Fatalf("AncestorPath: %v", err)
	}
	want := []string{"chap_40", "head_4011", "sub_401110", "code_40111010"}
	if len(path) != len(want) {
		t.Fatalf("expected path of %d nodes, got %d", len(want), len(path))
	}
	for i, id := range want {
		if path[i].ID != id {
			t.Fatalf("path[%d]: expected %s, got %s", i, id, path[i].ID)
		}
	}
}

func TestAncestorPath_IgnoresEnrichmentEdges(t *testing.T) {
	b := hierarchyFixture(t)
	// Sibling and similarity edges must never count as a second parent.
	mustAddEdge(t, b, "code_40111020", "code_40111010", common.RelSimilarTo)

	path, err := b.AncestorPath(context.Background(), "code_40111010")
	if err != nil {
		t.Fatalf("AncestorPath: %v", err)
	}
	if len(path) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(path))
	}
}

func TestAncestorPath_AmbiguousHierarchy(t *testing.T) {
	b := hierarchyFixture(t)
	mustAddNode(t, b, node("sub_401190", common.LabelSubheading))
	mustAddEdge(t, b, "sub_401190", "code_40111010", common.RelHasCode)

	_, err := b.AncestorPath(context.Background(), "code_40111010")
	if !errors.Is(err, graph.ErrAmbiguousHierarchy) {
		t.Fatalf("expected ErrAmbiguousHierarchy, got %v", err)
	}
}

func TestAncestorPath_UnknownNode(t *testing.T) {
	b := NewBackend()
	_, err := b.AncestorPath(context.Background(), "code_00000000")
	if !errors.Is(err, graph.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestStatistics(t *testing.T) {
	b := hierarchyFixture(t)
	stats, err := b.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.NodeCount != 5 {
		t.Fatalf("expected 5 nodes, got %d", stats.NodeCount)
	}
	if stats.EdgeCount != 6 {
		t.Fatalf("expected 6 edges, got %d", stats.EdgeCount)
	}
}
