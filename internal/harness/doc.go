// Package harness runs query scenarios through both compiler backends and
// checks that they agree.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: items_by_color
//	description: "What this scenario validates"
//	specs: ../specs            # descriptor directory, relative to this file
//	seed:
//	  - namespace: owners
//	    documents:
//	      - {id: o1, name: Ada}
//	  - namespace: items
//	    documents:
//	      - {id: i1, name: Lamp, color: RED, owner_id: o1}
//	calls:
//	  - method: findByNameOrColor
//	    args: [Chair, RED]
//	    page: {index: 0, size: 10}
//	    expect:
//	      ids: [i2, i1]
//	      count: 2
//	assertions:
//	  - type: namespace_count
//	    namespace: items
//	    count: 3
//	  - type: document
//	    namespace: items
//	    id: i1
//	    expect: {name: Lamp}
//	  - type: statement
//	    method: findByNameOrColor
//	    text: "SELECT * FROM items ..."
//
// # Execution
//
// Every backend runs the scenario on its own in-memory store seeded with
// the same documents, so delete calls of one backend never affect the
// other. Calls run in order. After both runs:
//
//   - every call must yield the same rows, counts or error on both backends
//   - expect clauses are checked against the object backend's results
//   - assertions are checked against every backend's final store
//
// Document ids missing from the seed come from a sequential generator, so
// reruns are byte-identical and results can be compared to golden files
// (see RunWithGolden).
package harness
