/*
errors.go - Centralized error types for the lot engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. InvalidRequest - Malformed input, detected before any write
  2. NotFound - Operation targets a non-existent lot
  3. MutationBlocked - Edit/delete rejected by the mutation guard
  4. TransactionFailed - Storage failure during a multi-write operation

PROPAGATION POLICY:
  InvalidRequest and NotFound surface before any write begins, with no
  partial effect. MutationBlocked is always caller-visible, never silently
  downgraded to a no-op. TransactionFailed means the whole operation rolled
  back; the caller retries the whole thing. A non-zero shortfall from a
  consume call is NOT an error and never maps to one.

SEE ALSO:
  - engine.go: Produces these errors
  - guard.go: Builds MutationBlockedError with actionable reasons
*/
package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRequest is returned for malformed input: non-positive
	// quantity, negative cost, empty identifiers, empty edits.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when an operation targets a lot that
	// does not exist.
	ErrNotFound = errors.New("lot not found")

	// ErrMutationBlocked is returned when an edit or delete is rejected
	// because of recorded consumption against the lot.
	ErrMutationBlocked = errors.New("mutation blocked by recorded consumption")

	// ErrTransactionFailed is returned when the underlying store fails
	// partway through a multi-write operation. The whole operation has
	// been rolled back.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRequestError describes which input was malformed.
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}

func (e *InvalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

// MutationBlockedError explains why an edit or delete was rejected.
// Reason is human-readable and actionable; EntryCount and Contexts let
// callers present what is blocking the mutation.
type MutationBlockedError struct {
	LotID      LotID
	Consumed   decimal.Decimal
	EntryCount int
	Contexts   []string
	Reason     string
}

func (e *MutationBlockedError) Error() string {
	return e.Reason
}

func (e *MutationBlockedError) Unwrap() error {
	return ErrMutationBlocked
}

// TransactionError wraps a storage failure that aborted a multi-write
// operation. The cause is in the message; errors.Is matches
// ErrTransactionFailed.
type TransactionError struct {
	Op    string
	Cause error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Cause)
}

func (e *TransactionError) Unwrap() error {
	return ErrTransactionFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or a guarded rejection, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrMutationBlocked)
}

// IsNotFound returns true if the error indicates a missing lot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
