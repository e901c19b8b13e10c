// Package token owns access tokens: the reference-counted, lock-protected
// security context objects that carry a principal's identity, groups,
// privileges, defaults and per-token audit policy.
//
// # Components
//
//   - [Manager]: constructs tokens (create, duplicate, filter, well-known
//     system and anonymous tokens), charges their storage, tracks live tokens
//     and owns the process-wide audit-policy counters.
//   - [Token]: immutable identity plus mutable fields guarded by a per-token
//     RWMutex. The trailing owner/primary-group/default-DACL region is an
//     offset-based arena so growth never invalidates internal references.
//   - [Process] and [Thread]: the primary-token slot (assign, deassign,
//     exchange) and the impersonation slot.
//
// # Locking
//
// Mutable fields are written under the token's write lock and read under its
// read lock. Code that needs several reads, or that must build audit
// parameters while already reading, uses [Token.Read] and the [Reader] view,
// whose accessors never lock again. Exchange takes the new token's write lock
// and the old token's write lock one after the other, never both.
//
// # Lifetime
//
// Tokens start with one reference. [Token.Release] on the last reference
// destroys the token exactly once: the logon session reference is dropped,
// the audit-policy counters are reversed, and the owned regions are freed.
//
// # What this package must NOT do
//
//   - Import audit or goRefMon. Audit generation is driven through [AssignObserver].
//   - Hold two token locks for writing at the same time.
package token
