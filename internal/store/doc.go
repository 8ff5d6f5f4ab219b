// Package store provides the SQLite-backed analysis archive.
//
// The archive keeps:
//   - Batches: one row per analyzed trace batch, with its canonical summary
//   - Run reports: per-run stats with a content digest
//   - Findings: one row per finding, so categories can be tallied in SQL
//   - Gate evaluations: gate results with the readiness they produced
//
// # Ordering
//
// Batches and evaluations carry a logical seq assigned at write time. Lists
// order by seq, never by wall-clock timestamps, with id as a tie-break.
// Reports and findings keep their original positions.
//
// # Identity
//
// Ids are UUIDv7. Summary and report digests are SHA-256 over canonical JSON
// with domain separation (see internal/canon), so identical analysis output
// always produces identical digests.
//
// # Connections
//
// Open passes WAL journaling, synchronous=NORMAL, a 5s busy timeout and
// foreign key enforcement as DSN options, so every connection gets them.
// The schema is created idempotently and stamped in user_version; an archive
// stamped by a newer build is refused with ErrSchemaTooNew.
package store
