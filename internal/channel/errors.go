package channel

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes provider errors.
type ErrorCode string

const (
	// ErrCodeInitialization indicates bad configuration or an unreachable
	// backend at startup.
	ErrCodeInitialization ErrorCode = "INITIALIZATION"

	// ErrCodeSchema indicates the schema could not be created or verified.
	ErrCodeSchema ErrorCode = "SCHEMA"

	// ErrCodeTransactionState indicates an operation on a handle in the
	// wrong state, or with no handle at all.
	ErrCodeTransactionState ErrorCode = "TRANSACTION_STATE"

	// ErrCodeCommit indicates the backend failed to commit. The transaction
	// has been rolled back.
	ErrCodeCommit ErrorCode = "COMMIT"

	// ErrCodeRollback indicates the backend failed to roll back. The handle
	// has still left the Active state.
	ErrCodeRollback ErrorCode = "ROLLBACK"

	// ErrCodeProviderClosed indicates use of a closed provider.
	ErrCodeProviderClosed ErrorCode = "PROVIDER_CLOSED"
)

// Error is the error type returned by Provider and Tx.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("initialize", "commit", "persist", ...).
	Op string

	// Channel is set for channel operations.
	Channel string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Channel != "" {
		msg += fmt.Sprintf(" (channel=%s)", e.Channel)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInitializationError reports whether err is an initialization failure.
func IsInitializationError(err error) bool { return hasCode(err, ErrCodeInitialization) }

// IsSchemaError reports whether err is a schema bootstrap failure.
func IsSchemaError(err error) bool { return hasCode(err, ErrCodeSchema) }

// IsTransactionStateError reports whether err is a handle state violation.
func IsTransactionStateError(err error) bool { return hasCode(err, ErrCodeTransactionState) }

// IsCommitError reports whether err is a failed commit.
func IsCommitError(err error) bool { return hasCode(err, ErrCodeCommit) }

// IsRollbackError reports whether err is a failed rollback.
func IsRollbackError(err error) bool { return hasCode(err, ErrCodeRollback) }

// IsProviderClosedError reports whether err came from a closed provider.
func IsProviderClosedError(err error) bool { return hasCode(err, ErrCodeProviderClosed) }

func newStateError(op string, state TxState, channel string) *Error {
	return &Error{
		Code:    ErrCodeTransactionState,
		Op:      op,
		Channel: channel,
		Message: fmt.Sprintf("transaction is %s", state),
	}
}

func newClosedError(op string) *Error {
	return &Error{
		Code:    ErrCodeProviderClosed,
		Op:      op,
		Message: "provider is closed",
	}
}
