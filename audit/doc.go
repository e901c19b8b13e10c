// Package audit is the security audit pipeline: it turns audit events into
// self-relative records and moves them through a bounded queue to a logging
// authority.
//
// # Components
//
//   - [Settings] and [Loader]: one-shot, fail-open configuration of queue
//     bounds, crash-on-audit-fail, privilege audit verbosity and the
//     close-handle suppression option.
//   - [Marshaller] and [Decode]: build and interpret self-relative records
//     from typed parameters ([Param]).
//   - [Queue]: the admission state machine (normal, discarding, dead) with
//     high/low watermarks and the audits-discarded meta-record.
//   - [Consumer]: the delivery goroutine woken on the queue's empty to
//     non-empty transition.
//   - [Pipeline]: marshal, admit, and escalate on failure.
//   - [Escalator]: the crash-on-audit-fail last resort.
//   - [Authority] implementations: no-op, channel, writer (JSON lines or
//     CBOR) and shared memory ([CopyToAddressSpace]).
//
// # Architecture boundaries
//
// This package owns record layout, buffering and delivery. It does NOT
// decide whether an event should be audited; that is audit policy and lives
// with the monitor. Delivery I/O never happens under the queue lock.
//
// # What this package must NOT do
//
//   - Import token or goRefMon (no upward imports).
//   - Drop a forced record.
//   - Free a work item more than once.
package audit
