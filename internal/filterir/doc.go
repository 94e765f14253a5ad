// Package filterir defines the filter intermediate representation produced
// by the predicate compiler and consumed by the materializer.
//
// The tree has two node families:
//
//	[predicate body] -> [filter IR: AndGroup / OrGroup / Atomic] -> [materializer] -> [sink]
//
// Filters: an AndGroup holds Atomic comparisons and OrGroups; an OrGroup
// holds AndGroup alternatives. An OrGroup never holds another OrGroup
// directly, so a || b || c is one three-way group rather than nested pairs.
//
// Values: the right-hand side of every Atomic is a value descriptor, not a
// value. Descriptors name constants, captured variables and chains over
// them; the materializer evaluates them against one predicate instance's
// bindings. A CompiledUnit therefore carries no captured data and is safe
// to cache and share.
//
// SEALED INTERFACES:
//
// Filter and Value are sealed with marker methods. Consumers switch over
// the concrete pointer types:
//
//	switch f := filter.(type) {
//	case *filterir.Atomic:
//	    // comparison
//	case *filterir.OrGroup:
//	    // alternation
//	}
//
// ENCODING:
//
// Marshal produces canonical JSON (sorted keys, NFC strings) through
// package ir, so Equal and Fingerprint are byte comparisons. Persistent
// caches store exactly these bytes.
package filterir
