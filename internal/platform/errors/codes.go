// Package errors provides coded errors for the session store.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeConnection means the storage engine could not open or operate the
	// backing file. It is fatal to the store instance.
	CodeConnection Code = "CONNECTION"

	// CodeQuery means a single read, write, or delete failed. The store stays
	// usable.
	CodeQuery Code = "QUERY"

	// CodeSerialization means a payload could not be converted to or from its
	// stored text form.
	CodeSerialization Code = "SERIALIZATION"

	// CodeClosed means the store no longer accepts operations.
	CodeClosed Code = "CLOSED"

	// CodeInvalidArgument means the caller supplied unusable input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Retryable reports whether a caller may reasonably retry an operation that
// failed with this code. The store itself never retries.
func (c Code) Retryable() bool {
	return c == CodeQuery
}
