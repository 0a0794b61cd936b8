// Package harness runs capture scenarios: scripted sequences of raw capture
// callbacks replayed through the real pipeline into a fresh in-memory store.
//
// A scenario exercises the whole write path (boundary conversion, motion
// aggregation, persistence and drop accounting) without a native capture
// source, and its persisted rows can be compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: typing_then_motion
//	description: "What this scenario validates"
//	steps:
//	  - key: { type: KeyDown, char: "h", process: Terminal }
//	    took: 250us
//	  - motion:
//	      process: Safari
//	      samples:
//	        - { px: 10, angle: 0, kph: 5 }
//	        - { px: 20, angle: 90, kph: 8 }
//	  - raw: { code: 4294967294 }
//	assertions:
//	  - type: stats
//	    stats: { recorded: 2, tap_disabled: 1 }
//	  - type: row_count
//	    category: keyboard
//	    count: 1
//	  - type: process_events
//	    process: Safari
//	    count: 1
//
// Each step delivers exactly one callback. took is the time between the
// callback's start and its delivery and becomes the execution time of the
// record; a negative value simulates clock skew.
//
// # Golden Files
//
// RunWithGolden renders the persisted rows one per line and compares them
// with testdata/golden/<name>.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
