package drone

import (
	"errors"
	"fmt"
)

// ErrNotDialed is returned when sending into a transport that has no live
// connection.
var ErrNotDialed = errors.New("transport not connected")

// ReconnectError indicates the dial loop exhausted its retry budget.
type ReconnectError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ReconnectError) Error() string {
	if e == nil {
		return "reconnect failed"
	}
	return fmt.Sprintf("drone dial %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ReconnectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
