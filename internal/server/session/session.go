// Package session keeps the in-memory registry of active conversations.
// Conversation state is single-process by design; a restart drops all open
// sessions.
package session

import (
	"sync"

	"github.com/tarifflab/hsnatlas/pkg/query"
)

// Entry pairs a conversation with its serialization lock. The query
// processor requires at most one in-flight turn per session; handlers hold
// Lock for the duration of a turn.
type Entry struct {
	Lock  sync.Mutex
	State *query.ConversationState
}

// Registry is a thread-safe map of live sessions keyed by session id.
type Registry struct {
	lock     sync.RWMutex
	sessions map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Entry),
	}
}

// Create starts a new conversation and returns its state.
func (r *Registry) Create() (*query.ConversationState, error) {
	state, err := query.NewConversationState()
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[state.SessionID] = &Entry{State: state}
	return state, nil
}

// Get returns the session entry for the given id.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	entry, ok := r.sessions[id]
	return entry, ok
}

// Delete ends a session. Deleting an unknown id is a no-op.
func (r *Registry) Delete(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, id)
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}
