package graph

import (
	"context"
	"errors"

	"github.com/tarifflab/hsnatlas/pkg/common"
)

// Direction selects which edges Neighbors follows: "in" walks edges
// arriving at the node, "out" walks edges leaving it.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Statistics holds basic node and edge counts for a graph.
type Statistics struct {
	NodeCount int64 `json:"node_count"`
	EdgeCount int64 `json:"edge_count"`
}

// Subgraph is the induced subgraph returned by Backend.Subgraph.
type Subgraph struct {
	Nodes []common.GraphNode `json:"nodes"`
	Edges []common.GraphEdge `json:"edges"`
}

var (
	// ErrNodeNotFound is returned when an operation references a node id
	// that does not exist in the graph.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrAmbiguousHierarchy is returned when a node has more than one
	// incoming hierarchy edge. The taxonomy is a forest; this indicates a
	// corrupted build and is never resolved silently.
	ErrAmbiguousHierarchy = errors.New("graph: multiple incoming hierarchy edges")
)

// Backend is the storage contract for the taxonomy graph. Two
// implementations exist: an in-memory directed graph and a Neo4j-backed
// store. Both are safe for concurrent reads once the build has completed.
//
// AddNode and AddEdge are idempotent: inserting an existing node or an
// identical (source, target, relation) edge is a successful no-op, and the
// returned bool reports whether the entity was newly created. Duplicate
// insertion is expected across repeated builds and is never an error.
type Backend interface {
	AddNode(ctx context.Context, node common.GraphNode) (bool, error)
	AddEdge(ctx context.Context, edge common.GraphEdge) (bool, error)

	// Neighbors returns the nodes one hop away in the given direction.
	// Order is deterministic within one process run.
	Neighbors(ctx context.Context, id string, direction Direction) ([]common.GraphNode, error)

	// Subgraph returns the induced subgraph reachable within depth hops,
	// following edges in either direction.
	Subgraph(ctx context.Context, id string, depth int) (*Subgraph, error)

	// CreateIndexes triggers backend-specific lookup optimizations.
	CreateIndexes(ctx context.Context) error

	Statistics(ctx context.Context) (Statistics, error)

	// ExportGraphML serializes the graph to a GraphML file for offline
	// inspection. Backends that cannot export directly log a warning and
	// no-op.
	ExportGraphML(ctx context.Context, path string) error

	Close(ctx context.Context) error
}

// Traverser is an optional capability exposed by backends that support
// direct hierarchy traversal. The graph-contextual retrieval strategy
// asserts this capability; backends without it degrade to a placeholder
// context instead of failing.
type Traverser interface {
	// AncestorPath returns the hierarchy path from the root ancestor down
	// to (and including) the given node, following incoming hierarchy
	// edges only. A node with more than one incoming hierarchy edge yields
	// ErrAmbiguousHierarchy.
	AncestorPath(ctx context.Context, id string) ([]common.GraphNode, error)
}
