// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages (agents, supervisor) from depending on concrete
// storage.
//
// Two backends exist: a volatile in-memory store for tests and single-shot
// CLI runs, and a SQLite store that survives process restarts so a
// conversation about a dataset can be resumed later.
package session
