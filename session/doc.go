// Package session tracks logon sessions: the authenticated contexts that
// access tokens are issued under.
//
// Every live token holds one reference on its logon session. A session is
// created with zero references. When the last reference is dropped the
// session is removed and the table's termination callback runs, which the
// monitor turns into a deleted-logon notification for the audit authority.
//
// # Binary encoding
//
// The Redis table stores each session as a compact binary record (see
// [Encode]) next to its reference count. The count is changed only by Lua
// scripts so it can never go negative.
//
// # Architecture boundaries
//
// This package owns the [Table] contract and its [MemoryTable] and
// [RedisTable] implementations. It does NOT know about tokens or audit
// records.
//
// # What this package must NOT do
//
//   - Import token, audit or goRefMon (no upward imports).
//   - Delete a session that still has references.
package session
