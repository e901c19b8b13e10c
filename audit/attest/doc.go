// Package attest signs every delivered audit work item with an Ed25519 JWT
// so a log consumer can prove which records the monitor produced.
//
// # Components
//
//   - [Signer]: issues and verifies attestation tokens. Each token binds the
//     SHA-256 digest of the record buffer, its tag and, for audit records,
//     category and audit ID.
//   - [Authority]: an audit.Authority decorator that signs, delivers to the
//     wrapped authority, then appends the token to a [Ledger].
//
// # What this package must NOT do
//
//   - Retain record buffers after Deliver returns.
//   - Accept tokens signed with any algorithm other than EdDSA.
package attest
