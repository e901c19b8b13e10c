// Package goRefMon composes the security reference monitor core: principal
// tokens and their lifetime, the logon-session table they reference, the
// audit pipeline that turns security events into self-relative records and
// delivers them to a logging authority, and the crash-on-audit-fail
// escalation that backs the whole pipeline.
//
// # Components
//
//   - [Builder]: validates [Config], loads audit settings from a
//     configuration store once and wires every collaborator.
//   - [Monitor]: owns the token manager, session table, audit queue and
//     consumer, and answers audit policy questions.
//   - Event generators on [Monitor]: assign primary token, privilege use,
//     close handle and system time change records.
//   - [Metrics]: lock-free counters with an optional latency histogram.
//
// # Architecture boundaries
//
// Token semantics live in package token, record layout in package audit and
// configuration stores in package registry. This package only composes them
// and decides which events are audited.
//
// # What this package must NOT do
//
//   - Block a caller on audit delivery. Records are queued; delivery happens
//     on the consumer goroutine.
//   - Swallow an audit failure while crash-on-audit-fail is set. Such
//     failures go to the escalator.
package goRefMon
