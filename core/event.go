package core

import (
	"time"

	"github.com/google/uuid"
)

// Handoff records an explicit transfer of conversational control between two
// named nodes (the supervisor or a worker agent). It is attached to a
// synthetic event so the control path stays reconstructable from the
// conversation alone.
type Handoff struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EventActions encodes orchestration signals attached to an Event. All fields
// are optional pointers / maps so absence can be distinguished from zero
// values. The orchestration loop interprets these after append.
type EventActions struct {
	StateDelta      map[string]any `json:"state_delta,omitempty"`
	TransferToAgent *string        `json:"transfer_to_agent,omitempty"`
	Handoff         *Handoff       `json:"handoff,omitempty"`
}

// Event is the primary unit of communication between the supervisor, the
// worker agents and external observers. After emission it should be treated
// as immutable. It captures:
//   - Correlation (RunID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Orchestration directives (Actions: state deltas, transfers, handoffs)
//   - Error metadata for turn failures surfaced as events
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Partial      *bool        `json:"partial,omitempty"`
	TurnComplete *bool        `json:"turn_complete,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a run.
// Prefer helper constructors for common semantic categories.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Actions:   EventActions{},
	}
}

// NewMessageEvent creates a non-user assistant message event with a single text part.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool/function invocation. If err is non-nil its message is copied into the
// response.Error field so the model can observe and self-correct.
func NewFunctionResponseEvent(runID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(runID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewHandoffEvent creates the synthetic marker recording "control passed from
// X to Y". The content uses the tool role so the record stays visible in the
// conversation history the supervisor inspects on its next decision.
func NewHandoffEvent(runID, from, to string) Event {
	e := NewEvent(runID, from)
	e.Actions.Handoff = &Handoff{From: from, To: to}
	e.Content = &Content{
		Role:  "tool",
		Parts: []Part{TextPart{Text: "transferred control from " + from + " to " + to}},
	}
	return e
}

// NewID generates a new unique identifier for events and runs.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming fragment that
// will be followed by additional events composing the final turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsHandoff reports whether this event is a control-transfer marker.
func (e Event) IsHandoff() bool { return e.Actions.Handoff != nil }

// HandoffRecord returns the handoff marker attached to this event, if any.
func (e Event) HandoffRecord() (Handoff, bool) {
	if e.Actions.Handoff == nil {
		return Handoff{}, false
	}
	return *e.Actions.Handoff, true
}

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within
// the event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text returns the concatenated text content of the event, or "" when the
// event carries no content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// IsSubstantive reports whether the event carries conversational content
// beyond control bookkeeping. Handoff markers and content-less events are not
// substantive; the supervisor uses this to detect empty handbacks.
func (e Event) IsSubstantive() bool {
	if e.IsHandoff() || e.Content == nil {
		return false
	}
	return len(e.Content.Parts) > 0
}

// IsFinalResponse implements the heuristic used by the turn loop to decide
// when an agent turn is complete (no pending tool calls/responses, not partial).
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
