package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/tarifflab/hsnatlas/pkg/common"

	"github.com/pkoukk/tiktoken-go"
)

const defaultPromptTokenBudget = 4096

const answerPromptFormat = `User query: "%s"

Based on the following retrieved HSN code information, provide a structured answer.
- Classify the user's query with the most likely HSN code.
- Provide a confidence score (High, Medium, Low).
- Explain your reasoning based on the provided context.
- List the top 3 potential matches with their descriptions.

Context:
%s`

// composeAnswer builds the generation prompt from the retrieved candidates
// and asks the generation backend for the final answer text. The context
// block is token-budgeted so oversized candidate sets cannot blow past the
// model's window.
func (p *Processor) composeAnswer(ctx context.Context, text string, docs []common.Document) (Response, error) {
	sections := make([]string, 0, len(docs))
	for _, doc := range docs {
		graphContext := doc.GraphContext
		if graphContext == "" {
			graphContext = "N/A"
		}
		sections = append(sections, fmt.Sprintf(
			"HSN Code: %s\nDescription: %s\nGraph Context: %s",
			doc.Metadata.HSNCode, doc.Text, graphContext,
		))
	}
	contextBlock, err := truncateToTokens(strings.Join(sections, "\n---\n"), p.promptTokenBudget)
	if err != nil {
		return Response{}, err
	}

	summary, err := p.generator.GenerateCompletion(ctx, fmt.Sprintf(answerPromptFormat, text, contextBlock))
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, Match{
			HSNCode:        doc.Metadata.HSNCode,
			Description:    doc.Metadata.ItemDescription,
			FullContext:    doc.Text,
			RetrievalScore: doc.Score,
			GraphContext:   doc.GraphContext,
			Metadata:       doc.Metadata,
		})
	}

	confidence := "Medium"
	if docs[0].Score > 0.85 {
		confidence = "High"
	}

	return Response{
		Type:        ResponseClassification,
		Summary:     summary,
		TopMatches:  matches,
		Confidence:  confidence,
		TradePolicy: "Free",
	}, nil
}

func truncateToTokens(text string, budget int) (string, error) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return "", fmt.Errorf("failed to load token encoding: %w", err)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text, nil
	}
	return enc.Decode(tokens[:budget]), nil
}
