package common

import "fmt"

// NodeLabel identifies the level of a taxonomy node.
//
// The HSN taxonomy is a four-level hierarchy: two-digit chapters contain
// four-digit headings, which contain six-digit subheadings, which contain
// the eight-digit codes goods are classified under.
type NodeLabel string

const (
	LabelChapter    NodeLabel = "Chapter"
	LabelHeading    NodeLabel = "Heading"
	LabelSubheading NodeLabel = "Subheading"
	LabelCode       NodeLabel = "HSNCode"
)

// Relation identifies the type of an edge between two taxonomy nodes.
//
// The HAS_* relations form the hierarchy tree. SIBLING_OF and SIMILAR_TO
// are enrichment relations added after the base graph exists.
type Relation string

const (
	RelHasHeading    Relation = "HAS_HEADING"
	RelHasSubheading Relation = "HAS_SUBHEADING"
	RelHasCode       Relation = "HAS_CODE"
	RelSiblingOf     Relation = "SIBLING_OF"
	RelSimilarTo     Relation = "SIMILAR_TO"
)

// IsHierarchy reports whether the relation is part of the taxonomy tree,
// as opposed to an enrichment relation.
func (r Relation) IsHierarchy() bool {
	switch r {
	case RelHasHeading, RelHasSubheading, RelHasCode:
		return true
	}
	return false
}

// GraphNode is a single node in the taxonomy graph. Nodes are created once
// and never mutated; re-adding an existing id is a no-op.
type GraphNode struct {
	ID          string    `json:"id"`
	Label       NodeLabel `json:"label"`
	Description string    `json:"description"`
}

// GraphEdge is a directed edge between two nodes. Properties carry
// relation-specific values such as the similarity score on SIMILAR_TO edges.
type GraphEdge struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Relation   Relation       `json:"relation"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Record is one flat row of the taxonomy dataset produced by the ingestion
// pipeline. The graph builder and the vector store are both fed from the
// same record set, which keeps their code ids consistent.
type Record struct {
	HSNCode               string `json:"hsn_code"`
	Chapter               string `json:"chapter"`
	Heading               string `json:"heading"`
	Subheading            string `json:"subheading"`
	ItemDescription       string `json:"item_description"`
	ChapterDescription    string `json:"chapter_description"`
	HeadingDescription    string `json:"heading_description"`
	SubheadingDescription string `json:"subheading_description"`
}

// DocumentID returns the stable vector store document id for this record.
func (r Record) DocumentID() string {
	return "hsn_" + r.HSNCode
}

// DocumentText renders the embedding text for this record, leading with the
// item description so it dominates the embedding.
func (r Record) DocumentText() string {
	return fmt.Sprintf(
		"Product: %s. Category: %s. Broader Group: %s. General Chapter: %s. HSN Code is %s.",
		r.ItemDescription, r.SubheadingDescription, r.HeadingDescription,
		r.ChapterDescription, r.HSNCode,
	)
}

// Documents maps records onto vector store documents.
func Documents(records []Record) []Document {
	docs := make([]Document, 0, len(records))
	for _, record := range records {
		docs = append(docs, Document{
			ID:       record.DocumentID(),
			Text:     record.DocumentText(),
			Metadata: record,
		})
	}
	return docs
}

// Document is a retrieved vector store entry. Score is a similarity or
// rerank score where higher is better. GraphContext is attached lazily by
// the graph-contextual retrieval strategy.
type Document struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Metadata     Record  `json:"metadata"`
	Score        float64 `json:"score"`
	GraphContext string  `json:"graph_context,omitempty"`
}
