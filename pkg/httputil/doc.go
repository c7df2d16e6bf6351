// Package httputil provides small helpers for JSON request/response
// handling shared by the API handlers: status-coded JSON writers, body
// decoding, path-variable access, and generic middleware (panic recovery,
// body size limits, middleware chaining).
package httputil
