package errors

import "fmt"

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the error message, e.g. "record count is 10, scan found 9".
	Message string

	// Code (required) is one of the ErrorCode values.
	Code string

	// Field (optional) is the related field the error occurred on, if any.
	Field string
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message: message,
		Code:    code,
		Field:   field,
	}
}

// NewMismatchDetails describes a field whose stored value disagrees with the computed one.
func NewMismatchDetails(field string, stored, computed any) *ErrorDetails {
	return NewErrorDetails(
		fmt.Sprintf("%s is %v, scan found %v", field, stored, computed),
		string(MetadataMismatchError),
		field,
	)
}

// Error() is used to implement the Golang `error` interface.
func (e *ErrorDetails) Error() string {
	return e.Message
}

// ErrorCodeEquals checks whether a given `error` has a specific code.
func ErrorCodeEquals(err error, code string) bool {
	errDetails, ok := err.(*ErrorDetails)
	if !ok {
		return false
	}

	return errDetails.Code == code
}
