// Package privilege provides the well-known privilege values, privilege
// attribute masks, a name registry, privilege sets with their binary codec, and
// the privilege-audit filter consulted before privilege-use audits are logged.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. It provides the
// codec (EncodeSet/DecodeSet) used when privilege sets are marshalled into
// self-relative audit records.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goRefMon, token, or audit.
//   - Reinitialize the audit filter after first initialization.
package privilege
