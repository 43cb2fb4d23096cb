// Package store provides SQLite-backed working-copy metadata.
//
// The store keeps:
//   - Administrative areas: repository UUID and URL per working-copy root
//   - Nodes: per-path revision, URL, pristine checksum, lock and changelist
//   - Node properties, tagged with their family (regular, entry, wc)
//   - Finalize runs: one audit row per post-commit apply pass
//
// *Store implements queue.MetadataStore. Errors caused by an unreachable
// database (closed handle, failed ping) wrap queue.ErrStoreUnavailable;
// operations on untracked paths wrap ErrNotFound.
//
// # Deterministic Reads
//
// Every multi-row query orders by path (or seq) with BINARY collation, so a
// parent always precedes its descendants.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
