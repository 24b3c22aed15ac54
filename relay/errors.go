package relay

import (
	"errors"
	"fmt"
)

// ErrFlushInProgress is returned by Flush when another pass is already
// running. The queue is only ever walked by one pass at a time.
var ErrFlushInProgress = errors.New("relay: flush already in progress")

// PermanentError marks a delivery failure that retrying cannot fix,
// e.g. the endpoint rejected the payload as invalid.
type PermanentError struct {
	Status  int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay: report rejected (status %d)", e.Status)
	}
	return fmt.Sprintf("relay: report rejected (status %d): %s", e.Status, e.Message)
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
