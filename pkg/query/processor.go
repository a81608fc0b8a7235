// Package query implements the conversational classification engine: a
// deterministic intent classifier, a two-state dialogue machine (idle or
// awaiting a disambiguation selection), and answer composition over the
// retrieved candidates.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/retrieval"
	"github.com/tarifflab/hsnatlas/pkg/store"
)

const (
	defaultDisambiguationThreshold = 0.15
	defaultRelevanceThreshold      = 0.40

	maxDisambiguationOptions = 3
)

// Processor runs conversation turns. It owns no session state; the caller
// passes the ConversationState and must serialize calls per session.
type Processor struct {
	strategy  retrieval.Strategy
	vs        store.VectorStore
	generator ai.Client

	disambiguationThreshold float64
	relevanceThreshold      float64
	promptTokenBudget       int
}

type ProcessorParams struct {
	Strategy  retrieval.Strategy
	Store     store.VectorStore
	Generator ai.Client

	// Zero values select the defaults.
	DisambiguationThreshold float64
	RelevanceThreshold      float64
	PromptTokenBudget       int
}

func NewProcessor(params ProcessorParams) *Processor {
	disambiguation := params.DisambiguationThreshold
	if disambiguation <= 0 {
		disambiguation = defaultDisambiguationThreshold
	}
	relevance := params.RelevanceThreshold
	if relevance <= 0 {
		relevance = defaultRelevanceThreshold
	}
	budget := params.PromptTokenBudget
	if budget <= 0 {
		budget = defaultPromptTokenBudget
	}
	return &Processor{
		strategy:                params.Strategy,
		vs:                      params.Store,
		generator:               params.Generator,
		disambiguationThreshold: disambiguation,
		relevanceThreshold:      relevance,
		promptTokenBudget:       budget,
	}
}

// ProcessQuery runs one turn. State is mutated only after the response is
// fully computed, so an upstream failure leaves the session exactly as it
// was and the user can retry.
func (p *Processor) ProcessQuery(ctx context.Context, userQuery string, state *ConversationState) (Response, error) {
	parsed := parseQuery(userQuery, state.AwaitingSelection())
	logger.Debug("[Query] Parsed query", "session", state.SessionID, "intent", parsed.Intent)

	if state.AwaitingSelection() && parsed.Intent == IntentSelection {
		response := resolveSelection(parsed, state.Pending)
		if response.Type == ResponseClassification {
			state.Pending = nil
		}
		state.Turns = append(state.Turns, Turn{UserQuery: userQuery, Response: response})
		return response, nil
	}

	var response Response
	var pending *Disambiguation
	var err error

	switch parsed.Intent {
	case IntentDirectLookup:
		response, err = p.directLookup(ctx, parsed.HSNCode)
	case IntentSummarization:
		response = summarizationResponse()
	default:
		response, pending, err = p.classify(ctx, parsed.Text)
	}
	if err != nil {
		return Response{}, err
	}

	// Any stale disambiguation is dropped here, replaced only when this
	// turn ended ambiguous itself.
	state.Pending = pending
	state.Turns = append(state.Turns, Turn{UserQuery: userQuery, Response: response})
	return response, nil
}

// directLookup bypasses retrieval entirely and reads the indexed store.
func (p *Processor) directLookup(ctx context.Context, hsnCode string) (Response, error) {
	doc, err := p.vs.Get(ctx, "hsn_"+hsnCode)
	if errors.Is(err, store.ErrNotFound) {
		return Response{
			Type:    ResponseNoResult,
			Summary: fmt.Sprintf("HSN Code %s was not found in our database.", hsnCode),
		}, nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("failed to look up code %s: %w", hsnCode, err)
	}

	meta := doc.Metadata
	summary := fmt.Sprintf(
		"**Information for HSN Code %s:**\n\n"+
			"- **Description:** %s\n"+
			"- **Trade Status:** Free\n\n"+
			"**Hierarchy:**\n"+
			"- **Chapter (%s):** %s\n"+
			"- **Heading (%s):** %s\n"+
			"- **Subheading (%s):** %s",
		hsnCode, meta.ItemDescription,
		meta.Chapter, meta.ChapterDescription,
		meta.Heading, meta.HeadingDescription,
		meta.Subheading, meta.SubheadingDescription,
	)
	return Response{
		Type:    ResponseClassification,
		Summary: summary,
		TopMatches: []Match{{
			HSNCode:  hsnCode,
			Metadata: meta,
		}},
	}, nil
}

func summarizationResponse() Response {
	return Response{
		Type: ResponseClarification,
		Summary: "That covers a broad range of products, from raw materials to finished goods.\n\n" +
			"To help me find the correct code, could you specify the product? For example:\n" +
			"- A raw material (like natural rubber latex)?\n" +
			"- An intermediate product (like vulcanised rubber sheets)?\n" +
			"- A finished article (like rubber tyres or conveyor belts)?",
	}
}

// classify is the default path: retrieve, gate on relevance, then either
// disambiguate or compose a final answer.
func (p *Processor) classify(ctx context.Context, text string) (Response, *Disambiguation, error) {
	docs, err := p.strategy.Retrieve(ctx, text, p.vs)
	if err != nil {
		return Response{}, nil, fmt.Errorf("failed to retrieve candidates: %w", err)
	}

	var topScore float64
	if len(docs) > 0 {
		topScore = docs[0].Score
	}
	if topScore < p.relevanceThreshold {
		return Response{
			Type:       ResponseNoResult,
			Summary:    "I'm sorry, but I couldn't find any relevant HSN codes for your query in my knowledge base.",
			Confidence: "Very Low",
		}, nil, nil
	}

	if options, ambiguous := p.ambiguousOptions(docs); ambiguous {
		return disambiguationResponse(options), &Disambiguation{Options: options}, nil
	}

	response, err := p.composeAnswer(ctx, text, docs)
	if err != nil {
		return Response{}, nil, err
	}
	return response, nil, nil
}

// ambiguousOptions applies the score-gap rule: with at least two results
// and a top-1/top-2 gap below the threshold, the leading candidates go
// back to the user instead of a single answer.
func (p *Processor) ambiguousOptions(docs []common.Document) ([]common.Document, bool) {
	if len(docs) < 2 {
		return nil, false
	}
	gap := docs[0].Score - docs[1].Score
	if gap >= p.disambiguationThreshold {
		return nil, false
	}
	logger.Info("[Query] Ambiguous result", "top", docs[0].Score, "second", docs[1].Score, "gap", gap)

	options := docs
	if len(options) > maxDisambiguationOptions {
		options = options[:maxDisambiguationOptions]
	}
	return options, true
}

func disambiguationResponse(options []common.Document) Response {
	summary := "I found a few possible matches. To give you the most accurate HSN code, please help me clarify:\n\n"
	for i, option := range options {
		graphContext := option.GraphContext
		if graphContext == "" {
			graphContext = "No additional context."
		}
		summary += fmt.Sprintf(
			"**Option %d: HSN Code %s**\n- Description: %s\n- Context: This code is for products under the category of '%s'.\n\n",
			i+1, option.Metadata.HSNCode, option.Metadata.ItemDescription, graphContext,
		)
	}
	summary += "Which option best describes your product? Please enter the option number (e.g., '1')."

	return Response{
		Type:    ResponseDisambiguation,
		Summary: summary,
		Options: options,
	}
}

// resolveSelection maps the first integer in the query onto the stored
// options. Invalid input keeps the disambiguation open for a retry.
func resolveSelection(parsed parsedQuery, pending *Disambiguation) Response {
	selection, ok := firstInteger(parsed.Text)
	if !ok {
		return Response{
			Type:    ResponseInvalidSelection,
			Summary: "I'm sorry, I didn't understand that selection.",
		}
	}
	if selection < 1 || selection > len(pending.Options) {
		return Response{
			Type:    ResponseInvalidSelection,
			Summary: "That's not a valid option number.",
		}
	}

	chosen := pending.Options[selection-1]
	return Response{
		Type: ResponseClassification,
		Summary: fmt.Sprintf(
			"Thank you for clarifying. Based on your selection, the correct classification is HSN Code %s.",
			chosen.Metadata.HSNCode,
		),
		TopMatches: []Match{{
			HSNCode:  chosen.Metadata.HSNCode,
			Metadata: chosen.Metadata,
		}},
		Confidence:  "Very High (User Confirmed)",
		TradePolicy: "Free",
	}
}
