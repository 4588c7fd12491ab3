// Package backend defines the generation backend abstraction for the
// Ganymede gateway and a shared HTTP base implementation.
//
// A Backend turns a prompt plus generation options into either a single
// completion or a lazy sequence of completion chunks. Concrete adapters
// (see the openai subpackage) embed HTTPBackend, which provides connection
// pooling, retry with exponential backoff, failure-to-taxonomy mapping, and
// health tracking with a consecutive-failure circuit breaker.
//
// All operations accept a context.Context and must return promptly when it
// is cancelled; cancellation of an in-progress stream is observed at the
// next chunk boundary.
package backend
