package core

import "testing"

func TestSession_StateAndClone(t *testing.T) {
	s := NewSession("s1")

	s.MergeState(map[string]any{"a": 1, "b": "x"})
	if v, ok := s.GetState("a"); !ok || v.(int) != 1 {
		t.Fatalf("state not applied: %+v", s.State)
	}

	snap := s.StateSnapshot()
	snap["c"] = 2
	if _, exists := s.GetState("c"); exists {
		t.Error("mutating a snapshot should not affect the session")
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}
	clone.SetState("c", 2)
	if _, exists := s.GetState("c"); exists {
		t.Error("original should not have clone's new key")
	}
}

func TestSession_AddEventAndHistory(t *testing.T) {
	s := NewSession("s2")
	s.AddEvent(NewMessageEvent("run", "assistant", "hello"))
	s.AddEvent(NewUserMessageEvent("run", "hi"))

	all := s.GetEvents()
	if len(all) != 2 || s.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	orig := all[0].Author
	all[0].Author = "changed"
	if s.GetEvents()[0].Author != orig {
		t.Error("events slice should be copied on read")
	}

	history := s.GetConversationHistory()
	foundUser := false
	for _, hev := range history {
		if hev.Content != nil && hev.Content.Role == "user" {
			foundUser = true
		}
	}
	if !foundUser {
		t.Error("expected user event in history")
	}
}

func TestSession_HistoryFiltersPartialsAndControlEvents(t *testing.T) {
	s := NewSession("s3")

	partial := true
	frag := NewMessageEvent("run", "assistant", "frag")
	frag.Partial = &partial
	s.AddEvent(frag)

	s.AddEvent(NewEvent("run", "system")) // no content
	s.AddEvent(NewHandoffEvent("run", "supervisor", "code_executor"))
	s.AddEvent(NewMessageEvent("run", "assistant", "final"))

	history := s.GetConversationHistory()
	if len(history) != 2 {
		t.Fatalf("expected handoff marker plus final message, got %d events", len(history))
	}
	if !history[0].IsHandoff() {
		t.Error("handoff marker should survive history filtering")
	}
	if history[1].Text() != "final" {
		t.Errorf("unexpected final text: %q", history[1].Text())
	}
}
