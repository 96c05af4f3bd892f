// Author: momentics <momentics@gmail.com>
//
// Common error types for the reactor package.

package reactor

import "fmt"

// Sentinel errors returned by reactor operations.
var (
	ErrClosed          = fmt.Errorf("reactor: endpoint closed")
	ErrStopped         = fmt.Errorf("reactor: stopped")
	ErrTimerReadDenied = fmt.Errorf("reactor: read is not permitted from a timer callback")
	ErrConnectTimeout  = fmt.Errorf("Connection timed out")
	ErrNotSeekable     = fmt.Errorf("reactor: endpoint is not seekable")
	ErrNoSuchTag       = fmt.Errorf("reactor: no endpoint registered for tag")
	ErrNotSupported    = fmt.Errorf("reactor: operation not supported on this platform")
	ErrCrossEndpointRead = fmt.Errorf("reactor: read is only valid on the endpoint currently being serviced")
)

// ErrorCode classifies structured errors attached to handler callbacks.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeRead
	ErrCodeWrite
	ErrCodeConnect
	ErrCodeConnectTimeout
)

// Error is a structured error carrying the endpoint tag and a code, used
// when invoking the handler's Error/ConnectError callbacks.
type Error struct {
	Code ErrorCode
	Tag  any
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (tag=%v)", e.Err, e.Tag)
}

func (e *Error) Unwrap() error { return e.Err }
