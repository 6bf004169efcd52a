// Package errors defines the error kinds raised while post-processing query results and the
// translation of those errors into messages that are safe to surface outside the process.
package errors

import (
	"context"
	"errors"
	"fmt"
)

const (
	InternalServerErrorMsg   = "Internal Server Error"
	PrivacyThresholdErrorMsg = "Too few results, the result is withheld for privacy reasons"
	RequestCancelledErrorMsg = "Request Cancelled"
)

var (
	// ErrContractViolation means the query engine response broke a structural invariant the
	// pipeline depends on (identifier column, row width).
	ErrContractViolation = errors.New("query result contract violation")

	// ErrMissingData is a ContractViolation raised when the result has too few columns to hold
	// an identifier column and at least one data column.
	ErrMissingData = fmt.Errorf("%w: missing data", ErrContractViolation)

	ErrTemplateMissing    = errors.New("record template id missing")
	ErrTemplateUnresolved = errors.New("record template could not be resolved")

	// ErrMalformedRecord means a record cell could not be read as a record at all.
	ErrMalformedRecord = errors.New("malformed record")

	ErrPseudonymExchange = errors.New("pseudonym exchange failed")
	ErrPrivacyThreshold  = errors.New("result below privacy threshold")
)

func ContractViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

func MissingData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMissingData, fmt.Sprintf(format, args...))
}

func TemplateMissing(column string, row int) error {
	return fmt.Errorf("%w: column '%s', row %d", ErrTemplateMissing, column, row)
}

func TemplateUnresolved(templateID string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: template '%s': %w", ErrTemplateUnresolved, templateID, cause)
	}
	return fmt.Errorf("%w: template '%s'", ErrTemplateUnresolved, templateID)
}

func MalformedRecord(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, reason)
}

func PseudonymExchange(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPseudonymExchange, fmt.Sprintf(format, args...))
}

// InternalError carries a public message for callers and the full internal cause for logs.
type InternalError struct {
	public   string
	internal error
}

func (e InternalError) Error() string {
	return e.public
}

func (e InternalError) InternalError() string {
	if e.internal == nil {
		return ""
	}
	return e.internal.Error()
}

func (e InternalError) Internal() error {
	return e.internal
}

// Unwrap exposes the internal cause to errors.Is/As within the process.
func (e InternalError) Unwrap() error {
	return e.internal
}

func NewInternalError(public string, internal error) InternalError {
	if public == "" {
		public = InternalServerErrorMsg
	}

	return InternalError{
		public:   public,
		internal: internal,
	}
}

// HandleError is used to hide internal errors from users. Only the privacy threshold and
// cancellation messages are specific; every other failure gets the generic message.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var internalErr InternalError
	if errors.As(err, &internalErr) {
		return internalErr
	}

	switch {
	case errors.Is(err, ErrPrivacyThreshold):
		return NewInternalError(PrivacyThresholdErrorMsg, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewInternalError(RequestCancelledErrorMsg, err)
	}
	return NewInternalError("", err)
}
