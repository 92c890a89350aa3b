// Package engine implements the per-frame collision pipeline.
//
// The engine takes candidate pairs, decides which of them need a check this
// frame, evaluates them on a fixed worker pool and applies the results.
//
// ARCHITECTURE:
//
// Frame flow (all on the caller's goroutine unless noted):
//  1. Clear() empties the work list.
//  2. Submit(a, b) filters a pair (stale handles, non-colliding objects,
//     parent/child, unbound kinds, beam early-out), canonicalizes it and
//     offers it to the cache. Admitted entries are appended to the work list.
//     SubmitColliders runs the broad phase first and submits its output.
//  3. Run() evaluates, then executes.
//
// Evaluate phase:
// Entries whose handler has no Evaluate, or every entry when the pool has a
// single worker, are marked Evaluated at once and take the sequential path.
// The rest are handed out round-robin to idle workers over per-worker
// inboxes; replies come back on one shared outbox. Before assigning, the
// dispatcher checks every busy worker's participants and defers any entry
// that shares one. Workers receive the two objects and the Evaluate
// function, never the cache entry, and the dispatcher alone writes results
// back.
//
// Execute phase:
// Entries are walked in work-list order. Parallel entries with a Collision
// result call Execute with the stored effect; sequential entries run the
// handler's combined check. An entry whose participant was destroyed
// earlier in the frame is marked Executed without applying anything.
// NextCheck is then set from the result and the pair kind's recheck interval.
//
// Safety timer:
// The dispatch loop runs under a wall-clock timer (default 5s). If it fires
// the frame is abandoned and the FatalHandler receives a SCHEDULING_STALL
// error. The default handler logs it and exits the process with status 3.
//
// CRITICAL PATTERNS:
//
// Throttling uses the simulated Clock, never wall time, so a replayed
// scenario makes the same recheck decisions. Effects are applied in a fixed
// order so damage and destruction are reproducible even though evaluation
// order across workers is not.
package engine
