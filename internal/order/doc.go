// Package order holds the value types and pure planning functions of the
// ordinal reconciliation engine.
//
// A group is the set of sibling items sharing a group ID (all topics of one
// course, all activities of one topic). Within a group, positions are
// expected to be dense: exactly 1..N, each used once.
//
// # Planning
//
// The planner never touches a store. Given an ordered snapshot of a group
// and a requested move (or a full target permutation), it computes the
// minimal set of position changes that turns the snapshot into the dense
// target order:
//
//	current:  A(1) B(2) C(3) D(4)
//	move:     from 3 to 0
//	target:   D A B C
//	changes:  D 4→1, A 1→2, B 2→3, C 3→4
//
// Items already at their target position never appear in a plan. For a dense
// snapshot this means an adjacent transposition costs two changes and any
// other move costs hi-lo+1 changes. A snapshot with gaps (left behind by
// deletions) is planned against the same dense target, so every plan also
// closes gaps.
//
// # Staging offsets
//
// SafeOffsetBase returns the first position of a staging range that cannot
// collide with any live position of the group. Writers move changed items
// into that range before committing final positions.
package order
