package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tarifflab/hsnatlas/pkg/ai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/store"
)

// fakeStrategy returns a fixed candidate list regardless of the query.
type fakeStrategy struct {
	docs []common.Document
	err  error
}

func (f *fakeStrategy) Retrieve(ctx context.Context, query string, vs store.VectorStore) ([]common.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	docs := make([]common.Document, len(f.docs))
	copy(docs, f.docs)
	return docs, nil
}

// fakeVS serves direct lookups from a fixed id map.
type fakeVS struct {
	byID map[string]common.Document
}

func (f *fakeVS) Initialize(ctx context.Context, docs []common.Document) error { return nil }

func (f *fakeVS) Query(ctx context.Context, text string, topK int) ([]common.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeVS) Get(ctx context.Context, id string) (common.Document, error) {
	doc, ok := f.byID[id]
	if !ok {
		return common.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return doc, nil
}

func (f *fakeVS) Close(ctx context.Context) error { return nil }

type stubAI struct{}

func (s *stubAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "canned answer", nil
}

func (s *stubAI) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return nil
}

func (s *stubAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *stubAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (s *stubAI) ResetMetrics() {}

func tyreRecord() common.Record {
	return common.Record{
		HSNCode: "40111010", Chapter: "40", Heading: "4011", Subheading: "401110",
		ItemDescription:       "New pneumatic tyres for motor cars",
		ChapterDescription:    "Rubber and articles thereof",
		HeadingDescription:    "New pneumatic tyres, of rubber",
		SubheadingDescription: "Of a kind used on motor cars",
	}
}

func candidate(code string, score float64) common.Document {
	rec := tyreRecord()
	rec.HSNCode = code
	return common.Document{
		ID:       "hsn_" + code,
		Text:     rec.DocumentText(),
		Metadata: rec,
		Score:    score,
	}
}

func newTestProcessor(strategy *fakeStrategy, vs *fakeVS) *Processor {
	return NewProcessor(ProcessorParams{
		Strategy:  strategy,
		Store:     vs,
		Generator: &stubAI{},
	})
}

func newTestState(t *testing.T) *ConversationState {
	t.Helper()
	state, err := NewConversationState()
	if err != nil {
		t.Fatalf("NewConversationState: %v", err)
	}
	return state
}

func TestProcessQuery_DirectLookupFound(t *testing.T) {
	rec := tyreRecord()
	vs := &fakeVS{byID: map[string]common.Document{
		"hsn_40111010": {ID: "hsn_40111010", Text: rec.DocumentText(), Metadata: rec},
	}}
	p := newTestProcessor(&fakeStrategy{}, vs)
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "Tell me about 40111010", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseClassification {
		t.Fatalf("expected classification_result, got %s", response.Type)
	}
	if !strings.Contains(response.Summary, "**Information for HSN Code 40111010:**") {
		t.Fatalf("unexpected summary: %q", response.Summary)
	}
	if !strings.Contains(response.Summary, "Rubber and articles thereof") {
		t.Fatalf("expected hierarchy descriptions in summary: %q", response.Summary)
	}
	if len(response.TopMatches) != 1 || response.TopMatches[0].HSNCode != "40111010" {
		t.Fatalf("expected single match for the code, got %v", response.TopMatches)
	}
	if len(state.Turns) != 1 {
		t.Fatalf("expected 1 turn recorded, got %d", len(state.Turns))
	}
}

func TestProcessQuery_DirectLookupMissing(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{byID: map[string]common.Document{}})
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "99999999", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseNoResult {
		t.Fatalf("expected no_result, got %s", response.Type)
	}
	if response.Summary != "HSN Code 99999999 was not found in our database." {
		t.Fatalf("unexpected summary: %q", response.Summary)
	}
	if len(state.Turns) != 1 {
		t.Fatalf("expected 1 turn recorded, got %d", len(state.Turns))
	}
}

func TestProcessQuery_DirectLookupOverridesOpenDisambiguation(t *testing.T) {
	rec := tyreRecord()
	vs := &fakeVS{byID: map[string]common.Document{
		"hsn_40111010": {ID: "hsn_40111010", Metadata: rec},
	}}
	p := newTestProcessor(&fakeStrategy{}, vs)
	state := newTestState(t)
	state.Pending = &Disambiguation{Options: []common.Document{candidate("40111010", 0.9)}}

	response, err := p.ProcessQuery(context.Background(), "Actually it is 40111010", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseClassification {
		t.Fatalf("expected classification_result, got %s", response.Type)
	}
	if state.Pending != nil {
		t.Fatal("expected the stale disambiguation to be dropped")
	}
}

func TestProcessQuery_Summarization(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{})
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "Give me an overview of these products", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseClarification {
		t.Fatalf("expected clarification_prompt, got %s", response.Type)
	}
	if !strings.Contains(response.Summary, "could you specify the product?") {
		t.Fatalf("unexpected summary: %q", response.Summary)
	}
	if len(state.Turns) != 1 {
		t.Fatalf("expected 1 turn recorded, got %d", len(state.Turns))
	}
}

func TestProcessQuery_BelowRelevanceThreshold(t *testing.T) {
	strategy := &fakeStrategy{docs: []common.Document{
		candidate("40111010", 0.30),
		candidate("40111020", 0.25),
	}}
	p := newTestProcessor(strategy, &fakeVS{})
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "something unrelated", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseNoResult {
		t.Fatalf("expected no_result, got %s", response.Type)
	}
	if response.Confidence != "Very Low" {
		t.Fatalf("expected Very Low confidence, got %q", response.Confidence)
	}
	if state.Pending != nil {
		t.Fatal("expected no pending disambiguation")
	}
}

func TestProcessQuery_NoCandidatesAtAll(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{})
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "anything", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseNoResult {
		t.Fatalf("expected no_result, got %s", response.Type)
	}
}

func TestProcessQuery_AmbiguousScoresTriggerDisambiguation(t *testing.T) {
	strategy := &fakeStrategy{docs: []common.Document{
		candidate("40111010", 0.91),
		candidate("40112010", 0.79),
		candidate("40113010", 0.70),
		candidate("40114010", 0.65),
	}}
	p := newTestProcessor(strategy, &fakeVS{})
	state := newTestState(t)

	response, err := p.ProcessQuery(context.Background(), "rubber tyres", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseDisambiguation {
		t.Fatalf("expected disambiguation, got %s", response.Type)
	}
	if len(response.Options) != 3 {
		t.Fatalf("expected options capped at 3, got %d", len(response.Options))
	}
	if !strings.Contains(response.Summary, "**Option 1: HSN Code 40111010**") {
		t.Fatalf("expected numbered options, got %q", response.Summary)
	}
	if !state.AwaitingSelection() {
		t.Fatal("expected an open disambiguation")
	}
	if len(state.Pending.Options) != 3 {
		t.Fatalf("expected 3 pending options, got %d", len(state.Pending.Options))
	}
}

func TestProcessQuery_SelectionRoundTrip(t *testing.T) {
	strategy := &fakeStrategy{docs: []common.Document{
		candidate("40111010", 0.91),
		candidate("40112010", 0.79),
	}}
	p := newTestProcessor(strategy, &fakeVS{})
	state := newTestState(t)
	ctx := context.Background()

	first, err := p.ProcessQuery(ctx, "rubber tyres", state)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Type != ResponseDisambiguation {
		t.Fatalf("expected disambiguation, got %s", first.Type)
	}

	second, err := p.ProcessQuery(ctx, "2", state)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.Type != ResponseClassification {
		t.Fatalf("expected classification_result, got %s", second.Type)
	}
	if !strings.Contains(second.Summary, "the correct classification is HSN Code 40112010") {
		t.Fatalf("unexpected summary: %q", second.Summary)
	}
	if second.Confidence != "Very High (User Confirmed)" {
		t.Fatalf("unexpected confidence: %q", second.Confidence)
	}
	if second.TradePolicy != "Free" {
		t.Fatalf("unexpected trade policy: %q", second.TradePolicy)
	}
	if state.Pending != nil {
		t.Fatal("expected disambiguation resolved")
	}
	if len(state.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(state.Turns))
	}
}

func TestProcessQuery_SelectionOutOfRange(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{})
	state := newTestState(t)
	state.Pending = &Disambiguation{Options: []common.Document{
		candidate("40111010", 0.91),
		candidate("40112010", 0.79),
	}}

	response, err := p.ProcessQuery(context.Background(), "5", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseInvalidSelection {
		t.Fatalf("expected invalid_selection, got %s", response.Type)
	}
	if response.Summary != "That's not a valid option number." {
		t.Fatalf("unexpected summary: %q", response.Summary)
	}
	if !state.AwaitingSelection() {
		t.Fatal("expected disambiguation to stay open for a retry")
	}
	if len(state.Turns) != 1 {
		t.Fatalf("expected the invalid attempt recorded as a turn, got %d", len(state.Turns))
	}
}

func TestProcessQuery_SelectionWithoutNumber(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{})
	state := newTestState(t)
	state.Pending = &Disambiguation{Options: []common.Document{
		candidate("40111010", 0.91),
	}}

	response, err := p.ProcessQuery(context.Background(), "choose", state)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if response.Type != ResponseInvalidSelection {
		t.Fatalf("expected invalid_selection, got %s", response.Type)
	}
	if response.Summary != "I'm sorry, I didn't understand that selection." {
		t.Fatalf("unexpected summary: %q", response.Summary)
	}
	if !state.AwaitingSelection() {
		t.Fatal("expected disambiguation to stay open")
	}
}

func TestProcessQuery_RetrievalFailureLeavesStateUntouched(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{err: errors.New("backend down")}, &fakeVS{})
	state := newTestState(t)
	state.Pending = &Disambiguation{Options: []common.Document{
		candidate("40111010", 0.91),
	}}

	_, err := p.ProcessQuery(context.Background(), "vulcanised rubber sheets", state)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(state.Turns) != 0 {
		t.Fatalf("expected no turn recorded on failure, got %d", len(state.Turns))
	}
	if !state.AwaitingSelection() {
		t.Fatal("expected pending disambiguation preserved on failure")
	}
}

func TestAmbiguousOptions_GapRule(t *testing.T) {
	p := newTestProcessor(&fakeStrategy{}, &fakeVS{})

	tests := []struct {
		name      string
		scores    []float64
		ambiguous bool
	}{
		{"clear winner", []float64{0.95, 0.60}, false},
		{"gap exactly at threshold", []float64{0.90, 0.75}, false},
		{"gap below threshold", []float64{0.91, 0.79}, true},
		{"single result", []float64{0.91}, false},
		{"no results", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docs := make([]common.Document, len(tc.scores))
			for i, score := range tc.scores {
				docs[i] = candidate(fmt.Sprintf("4011%04d", i), score)
			}
			_, ambiguous := p.ambiguousOptions(docs)
			if ambiguous != tc.ambiguous {
				t.Fatalf("expected ambiguous=%v, got %v", tc.ambiguous, ambiguous)
			}
		})
	}
}

func TestConversationState_History(t *testing.T) {
	state := newTestState(t)
	if state.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if state.Preferences["expertise_level"] != "novice" {
		t.Fatalf("expected novice default, got %q", state.Preferences["expertise_level"])
	}
	if state.AwaitingSelection() {
		t.Fatal("fresh session must not await a selection")
	}

	state.Turns = append(state.Turns,
		Turn{UserQuery: "rubber tyres", Response: Response{Summary: "which option?"}},
		Turn{UserQuery: "1", Response: Response{Summary: "code 40111010"}},
	)
	want := "User: rubber tyres\nSystem: which option?\nUser: 1\nSystem: code 40111010\n"
	if got := state.History(); got != want {
		t.Fatalf("unexpected history:\n  got  %q\n  want %q", got, want)
	}
}
