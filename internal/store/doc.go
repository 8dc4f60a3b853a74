// Package store provides SQLite-backed durable storage for orders and
// production rules.
//
// The orders table is the single coordination point of the system: there is
// no in-process shared mutable state, and the per-side status column acts as
// the processing lock. AcquireSide performs the read-check-and-transition as
// one conditional UPDATE so two racing processors can never both observe a
// processable status and proceed.
//
// # Write patterns
//
//   - InsertOrder: ON CONFLICT(order_id) DO NOTHING; an existing order is
//     left completely untouched so a resync never mutates in-flight side state
//   - DeleteOrdersNotIn: reconciling delete, makes the table a mirror of the
//     latest feed snapshot
//   - AcquireSide: status-guarded conditional UPDATE (compare-and-set)
//   - terminal transitions: plain guarded updates that re-derive the overall
//     status in the same transaction
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
