package core

import (
	"context"
	"maps"

	"github.com/datalyze-ai/datalyze/logging"
)

// RunContext carries the mutable, per-question execution scope handed to the
// supervisor loop and, in turn, to each worker agent's turn. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID)
//   - The user question content
//   - The working Session (exclusively owned by this run)
//   - The backing SessionStore mirror for persistence
//
// Exactly one node appends at any instant: the loop passes the RunContext to
// one agent at a time and never runs agents in parallel, which is what keeps
// the conversation strictly append-ordered.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Question         Content
	Session          *Session
	SessionStore     SessionStore

	*loggerAdapter
}

// NewRunContext constructs a RunContext bound to a session and store.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	question Content,
	sess *Session,
	store SessionStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Question:      question,
		Session:       sess,
		SessionStore:  store,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Append appends an event to the working session and mirrors it into the
// SessionStore. This is the single append position of the conversation.
func (rc *RunContext) Append(ev Event) error {
	rc.Session.AddEvent(ev)
	if rc.SessionStore == nil {
		return nil
	}
	return rc.SessionStore.AppendEvent(rc.SessionID, ev)
}

// GetState returns a session state value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if rc.Session == nil {
		return nil, false
	}
	return rc.Session.GetState(k)
}

// SetState writes a session state value and mirrors it into the store.
func (rc *RunContext) SetState(k string, v any) error {
	rc.Session.SetState(k, v)
	if rc.SessionStore == nil {
		return nil
	}
	return rc.SessionStore.ApplyDelta(rc.SessionID, map[string]any{k: v})
}

// ApplyStateDelta merges all pairs from d into session state and the store.
func (rc *RunContext) ApplyStateDelta(d map[string]any) error {
	rc.Session.MergeState(d)
	if rc.SessionStore == nil {
		return nil
	}
	cp := make(map[string]any, len(d))
	maps.Copy(cp, d)
	return rc.SessionStore.ApplyDelta(rc.SessionID, cp)
}

// History returns the filtered conversation history for model consumption.
func (rc *RunContext) History() []Event {
	if rc.Session == nil {
		return nil
	}
	return rc.Session.GetConversationHistory()
}
