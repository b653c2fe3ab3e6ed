// Package cloud implements HTTPS transcription and enhancement clients.
package cloud

import (
	"errors"
	"fmt"
)

// NetworkError wraps transport and HTTP failures from cloud providers.
type NetworkError struct {
	Op        string
	Message   string
	Retryable bool
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err originated from a cloud transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
