// Package store provides durable PositionStore adapters for the ordinal engine.
//
// Two backends are provided:
//   - Store: SQLite (github.com/mattn/go-sqlite3), used by the CLI, the
//     scenario harness, and single-node deployments
//   - PostgresStore: PostgreSQL through the pgx stdlib driver
//
// Both enforce UNIQUE(group_id, position) on every single-row write and never
// batch reorder writes into a transaction. The engine's two-phase protocol is
// what keeps positions unique mid-operation; the constraint is the safety net
// that turns a protocol bug into an error instead of corrupted order.
//
// # Error mapping
//
// Adapters translate driver errors into the sentinels of package order:
//   - order.ErrConstraintViolation: a write would duplicate (group_id, position)
//   - order.ErrItemNotFound: the addressed item does not exist
//
// Any other error is a transport failure from the engine's point of view.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
