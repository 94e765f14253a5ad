// Package cache provides backends for the compiled unit cache.
//
// Keys are predicate source keys (compiler.SourceKey); values are
// filterir.CompiledUnit trees, which hold value descriptors only and are
// therefore valid for every scope that runs the same source.
//
// Backends:
//   - Memory: in-process map
//   - SQLite: persistent, WAL mode, canonical JSON with a fingerprint check
//   - Redis: shared, prefixed keys with optional TTL
//
// No eviction policy is imposed beyond the Redis TTL.
package cache
