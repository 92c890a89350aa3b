// Package harness runs collision scenarios end to end and checks their
// outcome.
//
// A scenario places named objects in an arena, steps the collision engine
// for a fixed number of frames and records every executed pair, every
// destruction and every weapon expiry as a trace. The trace is the
// deterministic output of a run: for any worker count of two or more it is
// byte-identical, and its digest is stored with the run.
//
// # Scenario Format
//
// Scenarios are YAML files. Unknown fields are rejected.
//
//	name: head_on
//	run_id: test-run-head-on   # optional; generated (UUIDv7) when empty
//	frames: 3
//	frame_ms: 1000
//	workers: 2                 # optional; overridden by WithWorkers
//	objects:
//	  - {name: alpha, kind: ship, pos: [0, 0, 0], radius: 10, hull: 100, team: 1}
//	  - name: bolt
//	    kind: weapon
//	    pos: [-100, 0, 0]
//	    vel: [60, 0, 0]
//	    radius: 1
//	    team: 2
//	    weapon: {damage: 30, lifetime: 5}
//	assertions:
//	  - {type: collision_count, pair: ship-weapon, count: 1}
//	  - {type: destroyed, object: bolt}
//	  - {type: alive, object: alpha}
//	  - {type: executed_once}
//
// Objects spawn in spawn_frame (default 1) and are removed at the start of
// kill_frame. A parent must be listed before its children. Names are
// compared after NFC normalization.
//
// # Assertion Types
//
//   - collision_count: applied collisions of one pair kind across the run
//   - destroyed: the object was destroyed by a collision
//   - alive: the object is live after the last frame
//   - executed_once: no participant pair executes twice in one frame
//
// # Golden Files
//
// RunWithGolden compares a run's snapshot (trace, final states, team
// scores) against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
