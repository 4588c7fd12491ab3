// Package audit records the outcome of every resolved request for
// after-the-fact inspection.
//
// Records flow through an asynchronous Recorder so the request path never
// blocks on storage: resolved requests enqueue a Record, a single worker
// drains the queue into a Store, and records are dropped (and counted) when
// the queue is full. Storage backends are SQLite for persistence and an
// in-memory store for tests. A cron-scheduled Pruner enforces the retention
// window.
package audit
