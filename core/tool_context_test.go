package core

import "testing"

func TestToolContext_AccessorsAndState(t *testing.T) {
	rc := newTestRunContext(&captureStore{})
	tc := NewToolContext(rc, "code_generator", "call-1")

	if tc.SessionID() != "sess-1" || tc.RunID() != "run-1" {
		t.Fatalf("identifier accessors wrong: %s %s", tc.SessionID(), tc.RunID())
	}
	if tc.AgentName() != "code_generator" || tc.FunctionCallID() != "call-1" {
		t.Fatalf("call accessors wrong: %s %s", tc.AgentName(), tc.FunctionCallID())
	}
	if tc.Context() == nil || tc.Logger() == nil {
		t.Fatal("context and logger must be non-nil")
	}

	if err := tc.SetState("last_saved_code", "output/analysis.py"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if v, ok := tc.GetState("last_saved_code"); !ok || v.(string) != "output/analysis.py" {
		t.Fatalf("state not visible through tool context: %v %v", v, ok)
	}
	if tc.Actions().StateDelta["last_saved_code"] != "output/analysis.py" {
		t.Fatalf("state delta not accumulated: %+v", tc.Actions())
	}
}

func TestToolContext_ApplyActions(t *testing.T) {
	rc := newTestRunContext(nil)
	tc := NewToolContext(rc, "supervisor", "call-2")

	if err := tc.SetState("k", "v"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	tc.TransferToAgent("code_executor")

	ev := NewFunctionResponseEvent("run-1", "supervisor", "call-2", "transfer_to_agent", "ok", nil)
	tc.ApplyActions(&ev)

	if ev.Actions.StateDelta["k"] != "v" {
		t.Fatalf("state delta not applied to event: %+v", ev.Actions)
	}
	if ev.Actions.TransferToAgent == nil || *ev.Actions.TransferToAgent != "code_executor" {
		t.Fatalf("transfer not applied to event: %+v", ev.Actions)
	}
}
