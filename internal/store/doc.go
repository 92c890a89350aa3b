// Package store provides SQLite-backed durable storage for collision traces.
//
// A run is one execution of a scenario. Each executed work-list entry of
// each frame becomes one row in collisions, keyed by (run, frame, position),
// so a stored trace reads back in exactly the order the engine executed it.
//
// # Ordering
//
//   - Runs are ordered by seq, a logical counter assigned at WriteRun.
//   - Collisions are ordered by frame, then work-list position.
//   - Wall time is never stored.
//
// # Effect encoding
//
// Effects are stored as a msgpack envelope {k: variant tag, d: payload}
// and decoded back into the sealed handler.Effect variants.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
