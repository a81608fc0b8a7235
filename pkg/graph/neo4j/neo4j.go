package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Backend is the Neo4j implementation of graph.Backend. Nodes and edges are
// written with MERGE so repeated builds are idempotent on the server side.
//
// The backend does not implement graph.Traverser: retrieval strategies that
// need direct hierarchy traversal degrade to a placeholder context when the
// graph lives in Neo4j.
type Backend struct {
	driver   neo4j.DriverWithContext
	database string
}

// BackendParams configures a Neo4j backend connection.
type BackendParams struct {
	URI      string
	User     string
	Password string
	Database string

	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// NewBackend connects to Neo4j and verifies connectivity before returning.
func NewBackend(ctx context.Context, params BackendParams) (*Backend, error) {
	user := params.User
	if user == "" {
		user = "neo4j"
	}
	maxPool := params.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}
	timeout := params.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(user, params.Password, "")
	driver, err := neo4j.NewDriverWithContext(params.URI, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init neo4j driver: %w", err)
	}

	vCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Backend{
		driver:   driver,
		database: params.Database,
	}, nil
}

func (b *Backend) session(ctx context.Context) neo4j.SessionWithContext {
	return b.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database})
}

// AddNode merges a node by id under its label. Properties are only written
// on creation; re-adding an existing id is a no-op.
func (b *Backend) AddNode(ctx context.Context, node common.GraphNode) (bool, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MERGE (n:%s {id: $id})
		ON CREATE SET n.description = $description, n.label = $label
	`, string(node.Label))

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"id":          node.ID,
			"description": node.Description,
			"label":       string(node.Label),
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesCreated() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add node %s: %w", node.ID, err)
	}
	return created.(bool), nil
}

// AddEdge merges a relationship between two existing nodes. If either
// endpoint is missing the MATCH finds nothing and the call is a no-op.
func (b *Backend) AddEdge(ctx context.Context, edge common.GraphEdge) (bool, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (a {id: $source}), (b {id: $target})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET r += $properties
	`, string(edge.Relation))

	props := edge.Properties
	if props == nil {
		props = map[string]any{}
	}

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"source":     edge.SourceID,
			"target":     edge.TargetID,
			"properties": props,
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().RelationshipsCreated() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to add edge %s-%s: %w", edge.SourceID, edge.TargetID, err)
	}
	return created.(bool), nil
}

// Neighbors returns nodes one hop away, ordered by id for determinism.
func (b *Backend) Neighbors(ctx context.Context, id string, direction graph.Direction) ([]common.GraphNode, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	pattern := "(a {id: $id})-->(b)"
	if direction == graph.DirectionIn {
		pattern = "(a {id: $id})<--(b)"
	}
	query := fmt.Sprintf(`
		MATCH %s
		RETURN DISTINCT b.id AS id, b.label AS label, b.description AS description
		ORDER BY id
	`, pattern)

	nodes, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]common.GraphNode, 0, len(records))
		for _, record := range records {
			out = append(out, recordToNode(record))
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read neighbors of %s: %w", id, err)
	}
	return nodes.([]common.GraphNode), nil
}

// Subgraph returns the induced subgraph within depth hops in either
// direction. Depth is interpolated into the variable-length pattern because
// Cypher does not parameterize path bounds.
func (b *Backend) Subgraph(ctx context.Context, id string, depth int) (*graph.Subgraph, error) {
	if depth < 1 {
		depth = 1
	}
	session := b.session(ctx)
	defer session.Close(ctx)

	nodeQuery := fmt.Sprintf(`
		MATCH (n {id: $id})-[*1..%d]-(m)
		RETURN DISTINCT m.id AS id, m.label AS label, m.description AS description
		ORDER BY id
	`, depth)
	edgeQuery := fmt.Sprintf(`
		MATCH p = (n {id: $id})-[*1..%d]-(m)
		UNWIND relationships(p) AS rel
		RETURN DISTINCT startNode(rel).id AS source, endNode(rel).id AS target,
			type(rel) AS relation, rel.score AS score
		ORDER BY source, target, relation
	`, depth)

	sub, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (n {id: $id}) RETURN n.id AS id, n.label AS label, n.description AS description", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		root, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(root) == 0 {
			return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
		}

		out := &graph.Subgraph{Nodes: []common.GraphNode{recordToNode(root[0])}}

		res, err = tx.Run(ctx, nodeQuery, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			out.Nodes = append(out.Nodes, recordToNode(record))
		}

		res, err = tx.Run(ctx, edgeQuery, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			edge := common.GraphEdge{
				SourceID: stringValue(record, "source"),
				TargetID: stringValue(record, "target"),
				Relation: common.Relation(stringValue(record, "relation")),
			}
			if score, ok := record.Get("score"); ok && score != nil {
				if f, isFloat := score.(float64); isFloat {
					edge.Properties = map[string]any{"score": f}
				}
			}
			out.Edges = append(out.Edges, edge)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read subgraph of %s: %w", id, err)
	}
	return sub.(*graph.Subgraph), nil
}

// CreateIndexes creates per-label id indexes for lookup performance.
func (b *Backend) CreateIndexes(ctx context.Context) error {
	session := b.session(ctx)
	defer session.Close(ctx)

	labels := []common.NodeLabel{
		common.LabelChapter,
		common.LabelHeading,
		common.LabelSubheading,
		common.LabelCode,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, label := range labels {
			name := strings.ToLower(string(label)) + "_id"
			query := fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.id)", name, string(label))
			if _, err := tx.Run(ctx, query, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Info("[Graph] Neo4j indexes created")
	return nil
}

// Statistics returns node and relationship counts.
func (b *Backend) Statistics(ctx context.Context) (graph.Statistics, error) {
	session := b.session(ctx)
	defer session.Close(ctx)

	stats, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "MATCH (n) RETURN count(n) AS count", nil)
		if err != nil {
			return nil, err
		}
		nodeRec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}

		res, err = tx.Run(ctx, "MATCH ()-[r]->() RETURN count(r) AS count", nil)
		if err != nil {
			return nil, err
		}
		edgeRec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}

		return graph.Statistics{
			NodeCount: intValue(nodeRec, "count"),
			EdgeCount: intValue(edgeRec, "count"),
		}, nil
	})
	if err != nil {
		return graph.Statistics{}, fmt.Errorf("failed to read statistics: %w", err)
	}
	return stats.(graph.Statistics), nil
}

// ExportGraphML is not supported through the driver; server-side APOC
// handles exports for Neo4j deployments. Logged and skipped.
func (b *Backend) ExportGraphML(ctx context.Context, path string) error {
	logger.Warn("[Graph] GraphML export is not supported by the Neo4j backend; use APOC server-side", "path", path)
	return nil
}

// Close shuts down the underlying driver.
func (b *Backend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

func recordToNode(record *neo4j.Record) common.GraphNode {
	return common.GraphNode{
		ID:          stringValue(record, "id"),
		Label:       common.NodeLabel(stringValue(record, "label")),
		Description: stringValue(record, "description"),
	}
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(record *neo4j.Record, key string) int64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	n, _ := v.(int64)
	return n
}
