package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the rule-based classification of a raw user query.
type Intent string

const (
	IntentDirectLookup   Intent = "direct_lookup"
	IntentSelection      Intent = "selection"
	IntentSummarization  Intent = "summarization"
	IntentClassification Intent = "classification"
)

var hsnCodeRe = regexp.MustCompile(`\b(\d{8})\b`)

var selectionKeywords = map[string]struct{}{
	"select": {}, "choose": {}, "option": {}, "first": {}, "second": {}, "third": {},
}

var summaryKeywords = map[string]struct{}{
	"overview": {}, "category": {}, "type": {}, "kind": {}, "classification": {},
}

// parsedQuery is the outcome of lexical analysis on one query.
type parsedQuery struct {
	Text    string
	Intent  Intent
	HSNCode string
}

// parseQuery classifies intent with ordered rules: an 8-digit code always
// wins; a bare integer or selection keyword counts as a selection only
// while a disambiguation is open; summary keywords ask for orientation;
// everything else goes to full retrieval.
func parseQuery(query string, awaitingSelection bool) parsedQuery {
	if match := hsnCodeRe.FindStringSubmatch(query); match != nil {
		return parsedQuery{Text: query, Intent: IntentDirectLookup, HSNCode: match[1]}
	}

	tokens := tokenize(query)

	if awaitingSelection && (isBareInteger(query) || containsAny(tokens, selectionKeywords)) {
		return parsedQuery{Text: query, Intent: IntentSelection}
	}
	if containsAny(tokens, summaryKeywords) {
		return parsedQuery{Text: query, Intent: IntentSummarization}
	}
	return parsedQuery{Text: query, Intent: IntentClassification}
}

func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func containsAny(tokens []string, keywords map[string]struct{}) bool {
	for _, token := range tokens {
		if _, ok := keywords[token]; ok {
			return true
		}
	}
	return false
}

func isBareInteger(query string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(query))
	return err == nil
}

var integerRe = regexp.MustCompile(`\d+`)

// firstInteger extracts the first integer token from the query, used to
// resolve a disambiguation selection.
func firstInteger(query string) (int, bool) {
	match := integerRe.FindString(query)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}
