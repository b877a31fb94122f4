// Package harness runs sync scenarios end to end.
//
// A scenario describes local records, a sequence of passes against a fake
// remote catalog, and assertions on the outcome. Each scenario runs over a
// fresh in-memory SQLite store with a manual clock, sequential id
// generation and a recording trigger hook, so identical scenarios produce
// identical results.
//
// # Scenario Format
//
//	name: remote_update_applied
//	description: "A changed remote graph replaces the local one"
//	check_update_date: false
//	clock: 1000
//	local:
//	  - id: A
//	    synced: true
//	    workflow: { name: "Scrape", drawflow: { nodes: [...] } }
//	passes:
//	  - clock: 5000
//	    listing:
//	      - { id: A, fingerprint: "@content" }
//	    content:
//	      A: { drawflow: { nodes: [...] } }
//	    expect:
//	      updated: [A]
//	      fetches: 1
//	assertions:
//	  - type: record
//	    id: A
//	    nodes: [n1, n2, n3]
//	    expect: { name: "Scrape" }
//
// A listing fingerprint of "@local" stands for the local record's current
// fingerprint and "@content" for the fingerprint of the pass's content.
//
// # Assertion Types
//
//   - record: the record with id exists and matches expect (subset) and nodes
//   - record_absent: no record with id exists
//   - record_count: exactly count records exist
//   - hook_count: the trigger hook saw count register or cleanup calls
//   - fetch_count: content for id was fetched count times over all passes
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON snapshot of a run against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
