//go:build baremetal

package transports

import (
	"errors"
	"machine"
	"time"
)

// MCUTransport implements the bus transport on a microcontroller UART with a
// GPIO pin driving the half-duplex direction line.
type MCUTransport struct {
	uart   *machine.UART
	dirPin machine.Pin
	hasDir bool
}

// SerialConfig holds configuration for opening a UART.
type SerialConfig struct {
	Port     string
	BaudRate int
	Timeout  time.Duration

	// DirPin drives the transmit-enable line. Set HasDirPin to wire it.
	DirPin    machine.Pin
	HasDirPin bool
}

var currentTransport MCUTransport

// OpenSerial configures a UART with the given configuration.
func OpenSerial(cfg SerialConfig) (*MCUTransport, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}

	switch cfg.Port {
	case "", "0":
		currentTransport = MCUTransport{uart: machine.UART0}
	case "1":
		currentTransport = MCUTransport{uart: machine.UART1}
	default:
		return nil, errors.New("unknown UART: " + cfg.Port)
	}

	currentTransport.uart.SetBaudRate(uint32(cfg.BaudRate))

	if cfg.HasDirPin {
		cfg.DirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		cfg.DirPin.Low()
		currentTransport.dirPin = cfg.DirPin
		currentTransport.hasDir = true
	}

	return &currentTransport, nil
}

func (t *MCUTransport) Read(p []byte) (int, error) {
	return t.uart.Read(p)
}

func (t *MCUTransport) Write(p []byte) (int, error) {
	return t.uart.Write(p)
}

func (t *MCUTransport) Close() error {
	return nil
}

// SetReadTimeout is a no-op: TinyGo UART reads are non-blocking and the bus
// read loop supplies its own deadline.
func (t *MCUTransport) SetReadTimeout(timeout time.Duration) error {
	return nil
}

// Flush discards any buffered input data.
func (t *MCUTransport) Flush() error {
	buf := make([]byte, 1)
	for t.uart.Buffered() > 0 {
		t.uart.Read(buf)
	}
	return nil
}

// SetTransmitEnabled drives the direction pin.
func (t *MCUTransport) SetTransmitEnabled(on bool) error {
	if t.hasDir {
		t.dirPin.Set(on)
	}
	return nil
}
