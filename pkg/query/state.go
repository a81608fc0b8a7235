package query

import (
	"fmt"
	"strings"

	"github.com/tarifflab/hsnatlas/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Disambiguation is the pending follow-up of a turn that ended ambiguous.
// Options holds the candidates the user is choosing between, in the order
// they were presented.
type Disambiguation struct {
	Options []common.Document `json:"options"`
}

// Turn is one completed query/response exchange.
type Turn struct {
	UserQuery string   `json:"user_query"`
	Response  Response `json:"response"`
}

// ConversationState tracks a single user session. The processor assumes
// serialized access: at most one in-flight turn per state instance, with
// any locking done by the caller.
//
// Pending is non-nil exactly while the session awaits a disambiguation
// selection. A completed turn appends exactly one entry to Turns; a failed
// turn leaves the state untouched.
type ConversationState struct {
	SessionID   string            `json:"session_id"`
	Turns       []Turn            `json:"turns"`
	Preferences map[string]string `json:"preferences"`
	Pending     *Disambiguation   `json:"pending,omitempty"`
}

// NewConversationState creates a fresh session with a generated id.
func NewConversationState() (*ConversationState, error) {
	sessionID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	return &ConversationState{
		SessionID:   sessionID,
		Preferences: map[string]string{"expertise_level": "novice"},
	}, nil
}

// AwaitingSelection reports whether the session has an open disambiguation.
func (s *ConversationState) AwaitingSelection() bool {
	return s.Pending != nil && len(s.Pending.Options) > 0
}

// History renders the full exchange as prompt-ready text.
func (s *ConversationState) History() string {
	var b strings.Builder
	for _, turn := range s.Turns {
		fmt.Fprintf(&b, "User: %s\n", turn.UserQuery)
		fmt.Fprintf(&b, "System: %s\n", turn.Response.Summary)
	}
	return b.String()
}
