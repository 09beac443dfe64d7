package transports

import (
	"io"
	"time"
)

// MockTransport implements the bus transport for testing.
type MockTransport struct {
	ReadData    []byte
	ReadErr     error
	WriteData   []byte
	WriteErr    error
	WriteN      int // If > 0, Write reports at most this many bytes accepted
	Closed      bool
	ReadTimeout time.Duration
	Flushed     bool

	// TxEnabled mirrors the transmit-enable line; TxTransitions records
	// every transition so tests can assert the send/receive turn sequence.
	TxEnabled     bool
	TxTransitions []bool

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	if m.WriteN > 0 && m.WriteN < len(p) {
		m.WriteData = append(m.WriteData, p[:m.WriteN]...)
		return m.WriteN, nil
	}
	m.WriteData = append(m.WriteData, p...)
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) Flush() error {
	m.Flushed = true
	// Don't clear ReadData - tests need to preserve mock response data
	return nil
}

func (m *MockTransport) SetTransmitEnabled(on bool) error {
	m.TxEnabled = on
	m.TxTransitions = append(m.TxTransitions, on)
	return nil
}
