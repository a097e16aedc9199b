package ports

import (
	"errors"
	"fmt"
)

// Standard application-level error categories.
// Adapters and pipeline stages wrap their failures with these sentinels so
// callers can branch with errors.Is: "fix your data" (Validation,
// InconsistentSequence) vs "fix your configuration" (Configuration) vs
// "retry" (Storage).
var (
	ErrValidation           = errors.New("malformed input record")
	ErrInconsistentSequence = errors.New("execution sequence violates ordering or quantity assumptions")
	ErrConfiguration        = errors.New("invalid or missing configuration")
	ErrStorage              = errors.New("storage operation failed")

	// Database specific errors, wrapped by the storage category.
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)

// ValidationError identifies the missing or invalid field and the raw record
// that carried it. Unwraps to ErrValidation.
type ValidationError struct {
	Field  string
	Record string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q in record %q: %v", e.Field, e.Record, ErrValidation)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InconsistentSequenceError denotes upstream data corruption in an execution
// stream: out-of-order timestamps or quantities incompatible with the running
// position model. Not retryable. Unwraps to ErrInconsistentSequence.
type InconsistentSequenceError struct {
	Instrument string
	Account    string
	Reason     string
}

func (e *InconsistentSequenceError) Error() string {
	return fmt.Sprintf("inconsistent execution sequence for %s/%s: %s", e.Instrument, e.Account, e.Reason)
}

func (e *InconsistentSequenceError) Unwrap() error { return ErrInconsistentSequence }

// ConfigurationError names the instrument whose multiplier (or other
// required configuration) is missing. Unwraps to ErrConfiguration.
type ConfigurationError struct {
	Instrument string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for instrument %q: %s", e.Instrument, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// StorageError wraps a transactional storage failure. The operation it covers
// was rolled back in full; callers may retry at their discretion.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
