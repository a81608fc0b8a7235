package query

import "github.com/tarifflab/hsnatlas/pkg/common"

// ResponseType tags the branch a turn took.
type ResponseType string

const (
	ResponseClassification   ResponseType = "classification_result"
	ResponseDisambiguation   ResponseType = "disambiguation"
	ResponseClarification    ResponseType = "clarification_prompt"
	ResponseNoResult         ResponseType = "no_result"
	ResponseInvalidSelection ResponseType = "invalid_selection"
)

// Match is one candidate classification surfaced to the user.
type Match struct {
	HSNCode        string        `json:"hsn_code"`
	Description    string        `json:"description,omitempty"`
	FullContext    string        `json:"full_context,omitempty"`
	RetrievalScore float64       `json:"retrieval_score,omitempty"`
	GraphContext   string        `json:"graph_context,omitempty"`
	Metadata       common.Record `json:"metadata"`
}

// Response is the structured outcome of one conversation turn.
type Response struct {
	Type        ResponseType      `json:"type"`
	Summary     string            `json:"summary"`
	TopMatches  []Match           `json:"top_matches,omitempty"`
	Options     []common.Document `json:"options,omitempty"`
	Confidence  string            `json:"confidence,omitempty"`
	TradePolicy string            `json:"trade_policy,omitempty"`
}
