// Package materialize evaluates compiled filter units against one
// predicate instance's captured bindings and replays the result into a
// filter sink.
//
// A compiled unit describes where comparison values come from; a
// materialized Filter holds the values themselves. Materialization reads
// the unit without modifying it, so one unit may be materialized
// concurrently with different bindings. On error no Filter is returned and
// no sink is touched.
package materialize
