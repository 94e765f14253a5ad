// Package engine ties the predicate compiler, the compiled unit cache and
// the materializer together.
//
// Compilation Flow:
// 1. The predicate's source key is computed (compiler.SourceKey)
// 2. The cache is consulted; a hit skips straight to step 5
// 3. On a miss the predicate is compiled and its property paths validated
// 4. The compiled unit is stored under the source key
// 5. The unit is materialized against the predicate's captured values
//
// Compiled units hold value descriptors only. Two evaluations of the same
// predicate source with different captured values share one unit and
// produce different filters.
//
// Cache backends are best effort: a failing backend is logged at Warn and
// the engine compiles as if the cache were empty.
package engine
