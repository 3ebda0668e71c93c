package supervisor

import "github.com/datalyze-ai/datalyze/core"

// NoResultFallback is returned by ExtractAnswer when no node produced any
// textual output.
const NoResultFallback = "No result available."

// State describes where the routing loop currently stands.
type State int

const (
	// StateAwaitingDecision means the policy is about to choose the next step.
	StateAwaitingDecision State = iota
	// StateDelegated means a worker agent currently holds control.
	StateDelegated
	// StateTerminal means the run has produced its final snapshot.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateDelegated:
		return "delegated"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// NodeUpdate groups the events one node (the supervisor or a worker) appended
// during a loop iteration.
type NodeUpdate struct {
	Node   string
	Events []core.Event
}

// Snapshot is the per-iteration view emitted by the streaming loop. Updates
// keep the order in which nodes acted, which is what makes answer extraction
// deterministic.
type Snapshot struct {
	Iteration int
	State     State
	Updates   []NodeUpdate
}

// ExtractAnswer walks the snapshots backwards and returns the most recent
// textual output of any node, skipping handoff markers and content-less
// control events. When nothing qualifies it returns NoResultFallback.
func ExtractAnswer(snapshots []Snapshot) string {
	for i := len(snapshots) - 1; i >= 0; i-- {
		updates := snapshots[i].Updates
		for j := len(updates) - 1; j >= 0; j-- {
			events := updates[j].Events
			for k := len(events) - 1; k >= 0; k-- {
				ev := events[k]
				if ev.IsHandoff() {
					continue
				}
				if len(ev.GetFunctionCalls()) > 0 || len(ev.GetFunctionResponses()) > 0 {
					continue
				}
				if text := ev.Text(); text != "" {
					return text
				}
			}
		}
	}
	return NoResultFallback
}
