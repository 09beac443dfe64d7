//go:build !baremetal

package transports

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport implements the bus transport on a hardware serial port.
type SerialTransport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
	rtsDir   bool
}

// SerialConfig holds configuration for opening a serial port.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration

	// RTSDirection drives the transmit-enable line through the port's RTS
	// signal, for RS-485 style adapters that need explicit direction
	// control. Leave false for USB adapters that switch direction in
	// hardware.
	RTSDirection bool
}

// OpenSerial opens a serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}

	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(cfg.Timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &SerialTransport{
		port:     port,
		portName: cfg.Port,
		timeout:  cfg.Timeout,
		rtsDir:   cfg.RTSDirection,
	}, nil
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) SetReadTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return t.port.SetReadTimeout(timeout)
}

// Flush discards any buffered input data.
func (t *SerialTransport) Flush() error {
	return t.port.ResetInputBuffer()
}

// SetTransmitEnabled switches the line driver between send and receive. When
// the transmit window closes, pending output is drained first so the last
// frame bytes are not cut off by the direction change.
func (t *SerialTransport) SetTransmitEnabled(on bool) error {
	if !t.rtsDir {
		return nil
	}
	if !on {
		if err := t.port.Drain(); err != nil {
			return err
		}
	}
	return t.port.SetRTS(on)
}

// PortName returns the serial port name.
func (t *SerialTransport) PortName() string {
	return t.portName
}
