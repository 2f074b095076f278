package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports a caller mistake such as a missing product
	// snapshot for a guest add or a quantity below one.
	ErrInvalidInput = errors.New("invalid cart input")

	// ErrRemote matches every failure talking to the remote cart API.
	ErrRemote = errors.New("remote cart failure")

	// ErrStorage marks local slot problems. The manager absorbs these.
	ErrStorage = errors.New("local cart storage failure")
)

// RemoteError describes a failed remote cart call. Status is zero for
// transport errors that never produced a response.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("remote cart %s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("remote cart %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("remote cart %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("remote cart %s failed", e.Op)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// Rejected reports whether the remote API refused the request for good: a 4xx
// status other than an authentication, timeout or rate limit response.
// Retrying the same request cannot succeed.
func (e *RemoteError) Rejected() bool {
	switch e.Status {
	case 401, 403, 408, 429:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
