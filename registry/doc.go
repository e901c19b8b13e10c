// Package registry is the hierarchical key/value configuration store the
// audit subsystem reads its settings from.
//
// Keys are backslash-separated paths such as
// `System\CurrentControlSet\Control\Lsa`. Each key holds named values of one of
// three kinds: 32-bit integers, binary blobs and strings.
//
// # Backends
//
//   - [Memory]: in-process map, used by tests and embedders.
//   - [INIStore]: one INI section per key path (gopkg.in/ini.v1).
//   - [YAMLStore]: a YAML mapping of key path to value names.
//   - [RedisStore]: one Redis hash per key path, updated with Lua scripts.
//
// File and Redis backends share the textual value encoding of [FormatValue]
// and [ParseValue].
//
// # What this package must NOT do
//
//   - Interpret value names. Meaning belongs to the caller.
//   - Create missing keys on Set. A write to an absent key reports [ErrNotFound].
package registry
