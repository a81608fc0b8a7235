package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
)

type edgeKey struct {
	source   string
	target   string
	relation common.Relation
}

// Backend is the in-memory implementation of graph.Backend: an arena of
// nodes and edges indexed by stable string keys, with insertion-ordered
// adjacency so neighbor listings are deterministic within a process run.
//
// Writes happen during the build phase; once built, the graph is read-only
// and safe for concurrent readers.
type Backend struct {
	mu sync.RWMutex

	nodes     map[string]common.GraphNode
	nodeOrder []string

	edges     map[edgeKey]common.GraphEdge
	edgeOrder []edgeKey

	out map[string][]string
	in  map[string][]string
}

// NewBackend creates an empty in-memory graph.
func NewBackend() *Backend {
	return &Backend{
		nodes: make(map[string]common.GraphNode),
		edges: make(map[edgeKey]common.GraphEdge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

// AddNode inserts a node if its id is not present. Re-adding an existing id
// is a no-op; the bool reports whether the node was newly created.
func (b *Backend) AddNode(ctx context.Context, node common.GraphNode) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.nodes[node.ID]; exists {
		return false, nil
	}
	b.nodes[node.ID] = node
	b.nodeOrder = append(b.nodeOrder, node.ID)
	return true, nil
}

// AddEdge inserts an edge unless an identical (source, target, relation)
// edge exists. Both endpoints must already be present.
func (b *Backend) AddEdge(ctx context.Context, edge common.GraphEdge) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.nodes[edge.SourceID]; !ok {
		return false, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, edge.SourceID)
	}
	if _, ok := b.nodes[edge.TargetID]; !ok {
		return false, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, edge.TargetID)
	}

	key := edgeKey{source: edge.SourceID, target: edge.TargetID, relation: edge.Relation}
	if _, exists := b.edges[key]; exists {
		return false, nil
	}

	b.edges[key] = edge
	b.edgeOrder = append(b.edgeOrder, key)
	b.out[edge.SourceID] = append(b.out[edge.SourceID], edge.TargetID)
	b.in[edge.TargetID] = append(b.in[edge.TargetID], edge.SourceID)
	return true, nil
}

// Neighbors returns the nodes one hop away in the given direction, in edge
// insertion order with duplicates removed.
func (b *Backend) Neighbors(ctx context.Context, id string, direction graph.Direction) ([]common.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}

	var adjacent []string
	if direction == graph.DirectionIn {
		adjacent = b.in[id]
	} else {
		adjacent = b.out[id]
	}

	seen := make(map[string]struct{}, len(adjacent))
	result := make([]common.GraphNode, 0, len(adjacent))
	for _, nid := range adjacent {
		if _, dup := seen[nid]; dup {
			continue
		}
		seen[nid] = struct{}{}
		result = append(result, b.nodes[nid])
	}
	return result, nil
}

// Subgraph returns the induced subgraph reachable within depth hops from
// id, following edges in either direction.
func (b *Backend) Subgraph(ctx context.Context, id string, depth int) (*graph.Subgraph, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}

	reachable := map[string]struct{}{id: {}}
	frontier := []string{id}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, nid := range frontier {
			for _, adj := range b.out[nid] {
				if _, ok := reachable[adj]; !ok {
					reachable[adj] = struct{}{}
					next = append(next, adj)
				}
			}
			for _, adj := range b.in[nid] {
				if _, ok := reachable[adj]; !ok {
					reachable[adj] = struct{}{}
					next = append(next, adj)
				}
			}
		}
		frontier = next
	}

	sub := &graph.Subgraph{}
	for _, nid := range b.nodeOrder {
		if _, ok := reachable[nid]; ok {
			sub.Nodes = append(sub.Nodes, b.nodes[nid])
		}
	}
	for _, key := range b.edgeOrder {
		_, srcIn := reachable[key.source]
		_, dstIn := reachable[key.target]
		if srcIn && dstIn {
			sub.Edges = append(sub.Edges, b.edges[key])
		}
	}
	return sub, nil
}

// CreateIndexes is a no-op; the arena maps already provide direct lookup.
func (b *Backend) CreateIndexes(ctx context.Context) error {
	return nil
}

// Statistics returns node and edge counts.
func (b *Backend) Statistics(ctx context.Context) (graph.Statistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return graph.Statistics{
		NodeCount: int64(len(b.nodes)),
		EdgeCount: int64(len(b.edges)),
	}, nil
}

// Close releases nothing; the graph lives in process memory.
func (b *Backend) Close(ctx context.Context) error {
	return nil
}

// AncestorPath implements the graph.Traverser capability. It climbs
// incoming hierarchy edges from id to the root and returns the path in
// root-to-leaf order, including the starting node.
func (b *Backend) AncestorPath(ctx context.Context, id string) ([]common.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	node, ok := b.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}

	path := []common.GraphNode{node}
	current := id
	for {
		parent, found, err := b.hierarchyParent(current)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		path = append(path, b.nodes[parent])
		current = parent
	}

	// Reverse into root-to-leaf order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (b *Backend) hierarchyParent(id string) (string, bool, error) {
	parents := make(map[string]struct{})
	var parent string
	for _, src := range b.in[id] {
		for _, rel := range []common.Relation{common.RelHasHeading, common.RelHasSubheading, common.RelHasCode} {
			key := edgeKey{source: src, target: id, relation: rel}
			if _, ok := b.edges[key]; ok {
				parents[src] = struct{}{}
				parent = src
			}
		}
	}
	if len(parents) > 1 {
		return "", false, fmt.Errorf("%w: %s", graph.ErrAmbiguousHierarchy, id)
	}
	return parent, len(parents) == 1, nil
}
