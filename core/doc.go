// Package core provides the foundational domain types and execution contexts
// used by datalyze. It defines:
//
//   - Events (immutable conversation + orchestration records)
//   - Sessions (append-only conversational containers, one per question)
//   - Handoff records (explicit control-transfer markers between nodes)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - The error taxonomy shared by all capability packages
//
// The package intentionally keeps implementation concerns (persistence,
// supervisor orchestration, concrete agents, dataset I/O) out of scope,
// exposing small interfaces to enable custom backends and extensions.
package core
