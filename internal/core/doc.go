// Package core provides the business logic of the lab data service.
//
// The package owns the in-memory collection and every operation on it,
// independent of any transport. It is used by the HTTP handlers, the pokectl
// CLI, and tests without modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Service: The main entry point for fetch, import, export, record edits
//     and custom column operations.
//   - Jobs: Fetches and imports run as background jobs with an ID, progress
//     broadcast and cancellation.
//   - Limiter: At most one fetch or import runs at a time.
//
// # Background Jobs
//
// [Service.StartFetch] and [Service.StartImport] return a job ID at once and
// do the work in a goroutine. The flow is:
//
//  1. The job takes the single [JobLimiter] slot or fails with [ErrBusy]
//  2. The store is marked busy while the job runs
//  3. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  4. On success the collection is replaced in one step; on failure it is
//     left untouched and the error message is recorded
//
// Finished jobs stay queryable through [Service.JobStatus] for the configured
// retention, then are dropped.
//
// [Service.Fetch] and [Service.Import] run the same work synchronously under
// the same limiter.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - NET001: Remote API failures
//   - FMT001, FILE001-FILE002: File errors (format, size, missing upload)
//   - EXP001: Nothing to export
//   - REQ001: Malformed request input
//   - COL001-COL003, REC001-REC003: Schema and record errors
//   - BUSY001, JOB001-JOB003: Job errors (busy, not found, cancelled, timeout)
package core
