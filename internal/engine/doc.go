// Package engine implements the ordinal reorder protocol.
//
// The engine turns a reorder request for one group into position writes that
// never violate the store's UNIQUE(group, position) constraint, not even for
// the duration of a single write.
//
// ARCHITECTURE:
//
// Coordinator (public entry point):
// 1. Validate input (no store access)
// 2. Acquire the per-group guard; a busy group is rejected, not queued
// 3. Refuse groups flagged for resync
// 4. Snapshot the group with ListOrdered
// 5. Plan the minimal change set (order.PlanMove / PlanPermutation / PlanCompaction)
// 6. Pick the staging base above every current position
// 7. Writer: Stage every changed item, then Commit every changed item
// 8. Classify, invalidate the cache, notify, release the guard
//
// Each call walks a small state machine:
// idle → planning → staging → committing → done, with failed reachable from
// any step and resyncing following a partial failure.
//
// CRITICAL PATTERNS:
//
// Two-phase writes:
// Stage moves changed items to base+i where base exceeds the group's highest
// position. Commit then fills 1..N. Items that don't change already hold
// their final slot.
//
// No rollback:
// A failed write stops the protocol. The group is flagged and must be
// resynced from the store before it accepts another call.
//
// Writes are not cancellable:
// Once Stage starts, the caller's context no longer interrupts the protocol.
package engine
