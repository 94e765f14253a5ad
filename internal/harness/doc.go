// Package harness runs predicate conformance scenarios.
//
// A scenario is a YAML file naming a CUE spec directory, a predicate
// declared in it, optional captured values and the expected outcome:
//
//	name: adults_over_min
//	specs: ../specs
//	predicate: adults
//	captures:
//	  min: 21
//	expect:
//	  filters:
//	    - {property: age, operator: ">", value: 21}
//	  where:
//	    sql: age > ?
//	    params: [21]
//
// An expectation lists the materialized clauses in order (an OR group is
// written as `or:` with one clause list per alternative), the SQL the
// querysql sink renders, or the error kind the predicate must fail with.
//
// RunWithGolden additionally snapshots the compiled unit into
// testdata/golden so changes to the IR show up as golden diffs.
package harness
