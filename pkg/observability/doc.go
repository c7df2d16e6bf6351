// Package observability provides structured logging, Prometheus metrics,
// and health check endpoints.
//
// Logging is JSON-structured via stdlib slog, with helpers for carrying a
// request-scoped logger, request id, and acting user id through context.
// Metrics cover HTTP traffic, permission checks, the decision cache, and
// database pool usage. Health checks distinguish liveness (process up) from readiness
// (database reachable; a dead redis cache tier degrades but does not fail
// readiness).
package observability
