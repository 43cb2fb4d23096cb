// Package queue implements the post-commit finalization queue.
//
// A commit driver creates one Queue per commit, enqueues one Record per
// committed path while it walks the change set, and calls Apply exactly once
// after the server has acknowledged the commit. Apply pushes the deferred
// bookkeeping (property changes, lock and changelist removal, the new
// pristine checksum) into a MetadataStore.
//
// LIFECYCLE:
//
//	Empty --Enqueue--> Accumulating --Enqueue--> Accumulating
//	  |                     |
//	  +-------Apply---------+------> Consumed (terminal)
//
// Enqueue performs validation only; no store I/O happens before Apply.
// Apply marks the queue consumed before doing anything else, so a queue can
// never be applied twice even if the first pass failed.
//
// FAILURE MODEL:
//
// The remote commit cannot be rolled back, so Apply finishes as much local
// bookkeeping as it can. Per-path store errors are collected in the Report
// and do not stop the batch. An error wrapping ErrStoreUnavailable means the
// store itself is gone: Apply stops, lists the untouched records in
// Report.NotApplied and returns a STORE error. Cancellation is polled between
// paths, never in the middle of one.
//
// A Queue is owned by a single commit driver and is not safe for concurrent
// use.
package queue
