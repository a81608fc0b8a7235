package memory

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"os"

	"github.com/tarifflab/hsnatlas/pkg/logger"
)

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// ExportGraphML writes the whole graph to path in GraphML, the portable
// interchange format the offline inspection tooling reads.
func (b *Backend) ExportGraphML(ctx context.Context, path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	logger.Info("[Graph] Exporting GraphML", "path", path, "nodes", len(b.nodes), "edges", len(b.edges))

	doc := graphmlDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphmlKey{
			{ID: "label", For: "node", Name: "label", Type: "string"},
			{ID: "description", For: "node", Name: "description", Type: "string"},
			{ID: "relation", For: "edge", Name: "relation", Type: "string"},
			{ID: "score", For: "edge", Name: "score", Type: "double"},
		},
		Graph: graphmlGraph{ID: "hsn", EdgeDefault: "directed"},
	}

	for _, id := range b.nodeOrder {
		node := b.nodes[id]
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID: node.ID,
			Data: []graphmlData{
				{Key: "label", Value: string(node.Label)},
				{Key: "description", Value: node.Description},
			},
		})
	}

	for _, key := range b.edgeOrder {
		edge := b.edges[key]
		data := []graphmlData{{Key: "relation", Value: string(edge.Relation)}}
		if score, ok := edge.Properties["score"].(float64); ok {
			data = append(data, graphmlData{Key: "score", Value: fmt.Sprintf("%.6f", score)})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
			Source: edge.SourceID,
			Target: edge.TargetID,
			Data:   data,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graphml file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode graphml: %w", err)
	}
	return enc.Close()
}

var visTemplate = template.Must(template.New("viz").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>HSN taxonomy graph</title>
  <script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
  <style>#graph { width: 100%; height: 800px; border: 1px solid #ddd; }</style>
</head>
<body>
  <div id="graph"></div>
  <script>
    const nodes = new vis.DataSet({{.Nodes}});
    const edges = new vis.DataSet({{.Edges}});
    new vis.Network(document.getElementById("graph"), { nodes, edges }, {
      edges: { arrows: "to" },
      physics: { stabilization: { iterations: 200 } }
    });
  </script>
</body>
</html>
`))

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Group string `json:"group"`
}

type visEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// ExportHTML writes an interactive visualization of the graph to path.
// The artifact is for human inspection only; nothing reads it back.
func (b *Backend) ExportHTML(ctx context.Context, path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	nodes := make([]visNode, 0, len(b.nodes))
	for _, id := range b.nodeOrder {
		node := b.nodes[id]
		nodes = append(nodes, visNode{
			ID:    node.ID,
			Label: node.ID,
			Title: node.Description,
			Group: string(node.Label),
		})
	}

	edges := make([]visEdge, 0, len(b.edges))
	for _, key := range b.edgeOrder {
		edge := b.edges[key]
		edges = append(edges, visEdge{
			From:  edge.SourceID,
			To:    edge.TargetID,
			Label: string(edge.Relation),
		})
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create visualization file: %w", err)
	}
	defer f.Close()

	return visTemplate.Execute(f, map[string]template.JS{
		"Nodes": template.JS(nodesJSON),
		"Edges": template.JS(edgesJSON),
	})
}
