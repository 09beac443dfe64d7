package stservo

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrShortWrite means the transport accepted fewer bytes than the frame
	// length. It is the only send-failure signal the protocol has.
	ErrShortWrite = errors.New("incomplete write")
	// ErrTimeout means the transport delivered some but not all of an
	// expected response before its read timeout expired.
	ErrTimeout = errors.New("communication timeout")
	// ErrNoResponse means no bytes at all arrived for an expected response.
	ErrNoResponse = errors.New("no response from servo")
	// ErrShortResponse means a response frame was shorter than its fixed
	// structural length.
	ErrShortResponse = errors.New("short response frame")
	// ErrMalformedHeader means a response did not start with the two 0xFF
	// sync bytes.
	ErrMalformedHeader = errors.New("malformed response header")
	// ErrAddressMismatch means a response carried a device ID other than the
	// one addressed by the request.
	ErrAddressMismatch = errors.New("response from wrong servo ID")
	// ErrLengthMismatch means a response length field did not match the
	// expected parameter count.
	ErrLengthMismatch = errors.New("response length mismatch")
	// ErrChecksumMismatch means a response failed checksum validation.
	ErrChecksumMismatch = errors.New("response checksum mismatch")
	// ErrInvalidID means a servo ID outside the individually addressable
	// range 0x00-0xFD was used where a single device must be addressed.
	ErrInvalidID = errors.New("invalid servo ID")
	// ErrIDInUse means an ID reassignment was refused because the target ID
	// already answers on the bus.
	ErrIDInUse = errors.New("servo ID already in use")
	// ErrBusClosed means the bus has been closed.
	ErrBusClosed = errors.New("bus is closed")
)

// CommError represents a communication-level error.
type CommError struct {
	Op  string // Operation that failed (e.g., "read", "write", "ping")
	Err error  // Underlying error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// ServoError represents an error from a specific servo.
type ServoError struct {
	ID     int         // Servo ID
	Op     string      // Operation that failed
	Status StatusError // Status flags from servo (if applicable)
	Err    error       // Underlying error (if applicable)
}

func (e *ServoError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("servo %d %s failed: %s", e.ID, e.Op, e.Status.Error())
	}
	if e.Err != nil {
		return fmt.Sprintf("servo %d %s failed: %v", e.ID, e.Op, e.Err)
	}
	return fmt.Sprintf("servo %d %s failed", e.ID, e.Op)
}

func (e *ServoError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNoResponse returns true if the error indicates no response was received.
func IsNoResponse(err error) bool {
	return errors.Is(err, ErrNoResponse)
}

// GetServoError extracts a ServoError from an error chain, if present.
func GetServoError(err error) (*ServoError, bool) {
	var servoErr *ServoError
	if errors.As(err, &servoErr) {
		return servoErr, true
	}
	return nil, false
}
