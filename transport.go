package stservo

import (
	"io"
	"time"
)

// Transport is the interface for low-level communication with the servo bus.
// This abstraction allows for testing with mock implementations.
//
// The bus is a shared half-duplex line: SetTransmitEnabled switches the line
// driver between send and receive. The Bus owns every transition — it raises
// the signal just before writing a frame and lowers it immediately after, so
// implementations never need to manage direction themselves.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the read timeout duration.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input data.
	Flush() error

	// SetTransmitEnabled drives the transmit-enable line. Implementations
	// whose hardware handles direction automatically may treat this as a
	// no-op.
	SetTransmitEnabled(on bool) error
}
