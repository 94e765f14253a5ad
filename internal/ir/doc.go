// Package ir provides the constant value model and canonical encoding shared
// by the filter compiler.
//
// This package imports nothing internal. Every other internal package may
// import ir; ir stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Constants embedded in compiled units are IRValue, never raw Go values,
//     so units can be persisted and compared byte-for-byte
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for fingerprints and persistent caches
//   - JSON tags use snake_case
package ir
