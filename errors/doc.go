// Package errors provides the structured error type used across the
// instrumenter. Errors carry the processing phase they occurred in and a
// machine-readable kind, so callers can match with errors.Is without
// string comparison.
package errors
