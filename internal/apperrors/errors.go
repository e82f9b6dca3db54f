package apperrors

import (
	"errors"
	"fmt"
)

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist. They are
// never fatal; the caller decides the fallback (the calculator, for example,
// turns a missing treaty rule into a zero reclaim with a warning).
var (
	// ErrTreatyRuleNotFound indicates that no treaty rule covers the requested
	// country pair, security type and reference date.
	ErrTreatyRuleNotFound = errors.New("treaty rule not found")

	// ErrDividendNotFound indicates that a dividend record with the given ID does not exist.
	ErrDividendNotFound = errors.New("dividend not found")

	// ErrStatementNotFound indicates that a dividend statement with the given ID does not exist.
	ErrStatementNotFound = errors.New("statement not found")

	// ErrFormNotFound indicates that a generated form with the given ID does not exist.
	ErrFormNotFound = errors.New("generated form not found")

	// ErrProfileNotFound indicates that no profile exists for the given user.
	ErrProfileNotFound = errors.New("user profile not found")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrNegativeAmount indicates that an amount field has an invalid negative value.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrDuplicateEntry indicates that an entity with the same unique constraint already exists.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrIncompleteProfile indicates that a residency certificate was requested
	// for a profile missing name, address or country of residence.
	ErrIncompleteProfile = errors.New("user profile is incomplete")

	// ErrEmptyDividendList indicates that a schedule or bundle form was
	// requested without any dividends.
	ErrEmptyDividendList = errors.New("dividend list cannot be empty")

	// ErrDividendSubmitted indicates an attempt to delete or re-link a dividend
	// that is already attached to a generated form.
	ErrDividendSubmitted = errors.New("dividend is attached to a generated form")

	// ErrSentMethodRequired indicates a transition to SENT without a sent method.
	ErrSentMethodRequired = errors.New("sentMethod is required to mark a statement as sent")

	// ErrUnparsableStatement indicates that an uploaded statement file could
	// not be parsed into dividend records.
	ErrUnparsableStatement = errors.New("statement file could not be parsed")
)

// Data integrity errors represent inconsistencies or corruption in the data.
// They are fatal and non-retriable.
var (
	// ErrOverlappingRule indicates that a treaty rule insert would create
	// overlapping validity ranges for the same country pair and security type.
	// Ambiguous resolution is rejected at ingestion, never at calculation time.
	ErrOverlappingRule = errors.New("overlapping treaty rule validity ranges")

	// ErrDataInconsistency indicates that stored data violates an invariant
	// the write paths are supposed to uphold, e.g. more than one treaty rule
	// covering the same lookup.
	ErrDataInconsistency = errors.New("data inconsistency detected")
)

// Operation failure errors represent system-level failures when retrieving or
// processing data.
var (
	ErrFailedToRetrieveDividends  = errors.New("failed to retrieve dividends")
	ErrFailedToRetrieveStatements = errors.New("failed to retrieve statements")
	ErrFailedToRetrieveRules      = errors.New("failed to retrieve treaty rules")
	ErrFailedToRetrieveForms      = errors.New("failed to retrieve generated forms")

	// ErrStorageFailure wraps any object-storage error (upload, presign,
	// delete, exists). Storage I/O is never silently swallowed.
	ErrStorageFailure = errors.New("object storage operation failed")

	// ErrTemplateNotFound indicates that a named PDF template does not exist.
	// Unlike a template without form fields, this is fatal.
	ErrTemplateNotFound = errors.New("form template not found")
)

// InvalidTransitionError rejects an illegal statement-status change. The
// message always names both the current and the requested state.
type InvalidTransitionError struct {
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid statement transition from %s to %s", e.Current, e.Requested)
}
