// Package dcerr defines the error taxonomy of the temporal document store.
//
// Errors are plain sentinel values, matched with errors.Is/errors.As, and
// wrapped with fmt.Errorf("...: %w", err) at each layer, rather than a
// stack-trace-capturing third-party library.
package dcerr

import "errors"

var (
	// ErrParse covers a malformed RecordId, key, or configuration value.
	ErrParse = errors.New("parse error")

	// ErrKeyViolation covers an empty string token, a ';' inside a string
	// token, a forbidden double token, a key arity mismatch, or a nil
	// element inside a key.
	ErrKeyViolation = errors.New("key violation")

	// ErrCycleDetected means a dataset reached during lookup-list expansion
	// lists itself directly among its own imports. Longer import cycles are
	// pruned during expansion and do not raise it.
	ErrCycleDetected = errors.New("cycle detected in dataset imports")

	// ErrNotFound is returned by the non-OrNil point-lookup variants when
	// nothing exists for the given id.
	ErrNotFound = errors.New("record not found")

	// ErrTypeMismatch means the stored type is not a subtype of the
	// requested root type, in a context that forbids returning nil.
	ErrTypeMismatch = errors.New("stored type is not a subtype of requested type")

	// ErrReadOnlyViolation is returned by any mutation attempted on a
	// read-only DataSource.
	ErrReadOnlyViolation = errors.New("data source is read-only")

	// ErrPolicyViolation is returned when an operation is forbidden by the
	// configured instance type (e.g. dropping PROD or UAT).
	ErrPolicyViolation = errors.New("operation forbidden by instance policy")

	// ErrConfiguration is returned for invalid DataSource configuration,
	// e.g. both SavedByTime and SavedById set at once.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrTimeout is returned when a blocking backend call exceeds its
	// deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrBackend wraps a transient or fatal I/O failure reported by the
	// storage driver.
	ErrBackend = errors.New("backend error")
)
