// Package ident defines the identity primitives shared by the token store and
// the audit pipeline: security identifiers (SIDs), locally unique identifiers
// (LUIDs), group attribute masks and opaque access control lists.
//
// # Binary encoding
//
// SIDs are held in their canonical binary form (revision, sub-authority count,
// 48-bit big-endian identifier authority, little-endian sub-authorities) so
// they can be copied verbatim into self-relative audit records. The string
// form "S-1-5-32-544" is accepted and produced for configuration and logs.
//
// # What this package must NOT do
//
//   - Evaluate access checks against ACLs. Only header-level validation lives here.
//   - Import token, audit, or any higher layer.
package ident
