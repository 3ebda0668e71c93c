// Package supervisor implements the routing loop that turns a user question
// into a finished conversation. A Supervisor owns a registry of worker agents
// and a Policy that decides, between worker turns, whether to delegate to a
// worker or to finish with an answer.
//
// Every loop iteration produces a Snapshot listing which nodes acted and the
// events they appended, in order. Snapshots are delivered over an unbuffered
// channel: consumers pull them one at a time and the loop does not race ahead
// of its observer. Control transfers are recorded as explicit handoff events
// in the conversation, so the routing history is reconstructable from the
// session alone.
package supervisor
