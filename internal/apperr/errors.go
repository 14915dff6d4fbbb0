// Package apperr defines the failure kinds surfaced by the retrieval pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// InvalidArgumentError reports caller input that cannot be processed, such as an
// unknown spatial predicate or a malformed parameter code. It is raised before any
// work is performed.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// InvalidArgument builds an InvalidArgumentError with a formatted reason.
func InvalidArgument(field, format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExternalServiceError wraps a non-success response from the statistics API.
type ExternalServiceError struct {
	StatusCode int
	Body       string
}

func (e *ExternalServiceError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("external service returned status %d: %s", e.StatusCode, body)
}

// DataFormatError reports a response whose structure does not match the expected schema.
type DataFormatError struct {
	Err error
}

func (e *DataFormatError) Error() string {
	return "unexpected data format: " + e.Err.Error()
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// DataFormat wraps err as a DataFormatError.
func DataFormat(err error) *DataFormatError {
	return &DataFormatError{Err: err}
}

// IsInvalidArgument reports whether err (or any error in its chain) is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}

// IsExternalService reports whether err (or any error in its chain) is an ExternalServiceError.
func IsExternalService(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}

// IsDataFormat reports whether err (or any error in its chain) is a DataFormatError.
func IsDataFormat(err error) bool {
	var de *DataFormatError
	return errors.As(err, &de)
}

// StatusCode returns the HTTP status carried by an ExternalServiceError in err's chain, or 0.
func StatusCode(err error) int {
	var ee *ExternalServiceError
	if errors.As(err, &ee) {
		return ee.StatusCode
	}
	return 0
}
