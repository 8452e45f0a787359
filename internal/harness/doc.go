// Package harness runs reorder scenarios against a real store and compares
// their traces with golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: move_last_to_front
//	description: "Moving the last item to the front shifts the others down"
//	batch_threshold: 5     # optional
//	offset_margin: 1       # optional
//	groups:
//	  - id: course-1
//	    items: [a, b, c, d]
//	steps:
//	  - reorder: { group: course-1, from: 3, to: 0 }
//	  - fail_write: { nth: 2 }
//	  - permute: { group: course-1, order: [a, b, c, d] }
//	    expect: partial_failure
//	  - resync: { group: course-1 }
//	  - delete: { item: b }
//	  - compact: { group: course-1 }
//	assertions:
//	  - type: final_order
//	    group: course-1
//	    items: [a, c, d]
//	  - type: dense
//	    group: course-1
//
// Files are checked against an embedded CUE schema before decoding.
//
// # Step Types
//
//   - reorder, permute, compact: run through the Coordinator; expect names
//     the outcome kind (default success)
//   - delete: removes an item from the store directly, leaving a gap
//   - resync: clears the group's resync flag
//   - fail_write: the nth position write from now fails
//
// # Assertion Types
//
//   - final_order: item IDs of a group in position order
//   - dense: positions of a group are exactly 1..N
//   - write_count: successful position writes over the whole scenario
//   - needs_resync: whether a group is blocked after a partial failure
//
// # Traces
//
// Every position write and every settled call is stamped from one logical
// clock. The merged trace is stored under testdata/golden/<name>.golden.
package harness
