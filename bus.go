package stservo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/botamochi6277/STS-servos/transports"
)

// WriteMode selects when a register write takes effect on the device.
type WriteMode int

const (
	// WriteImmediate applies the value as soon as the device receives it.
	WriteImmediate WriteMode = iota
	// WriteDeferred stages the value on the device; it only takes effect
	// when Trigger broadcasts the ACTION instruction. Staging writes on
	// several devices and then triggering once releases them in lockstep.
	WriteDeferred
)

// Bus manages communication with servos on a shared half-duplex bus.
//
// All operations serialize through an internal mutex: the protocol is
// single-master request/response, so exactly one round trip owns the line at
// a time. There are no internal retries — a failed send or a timed-out
// receive is reported once and retrying is the caller's decision.
type Bus struct {
	transport Transport
	protocol  *Protocol
	timeout   time.Duration

	mu          sync.Mutex
	lastCmdTime time.Time
	minCmdGap   time.Duration
	turnaround  time.Duration
	closed      bool
}

// BusConfig holds configuration for creating a new Bus.
type BusConfig struct {
	// Transport is the underlying communication transport.
	// If nil, Port must be specified to open a serial connection.
	Transport Transport

	// Port is the serial port path (e.g., "/dev/ttyUSB0").
	// Ignored if Transport is provided.
	Port string

	// BaudRate is the communication speed. Default is 1000000.
	BaudRate int

	// Protocol version: ProtocolSTS (default) or ProtocolSCS.
	Protocol int

	// Timeout bounds each response read. Default is 1 second.
	Timeout time.Duration

	// TurnaroundDelay is how long the line is left to settle after the
	// transmit-enable signal drops, before any read. Default is 200µs.
	TurnaroundDelay time.Duration

	// MinCommandGap is the minimum time between commands. Default is 1ms.
	MinCommandGap time.Duration
}

// NewBus creates a new servo bus with the given configuration.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1000000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.TurnaroundDelay == 0 {
		cfg.TurnaroundDelay = 200 * time.Microsecond
	}
	if cfg.MinCommandGap == 0 {
		cfg.MinCommandGap = time.Millisecond
	}

	transport := cfg.Transport
	if transport == nil {
		if cfg.Port == "" {
			return nil, errors.New("either Transport or Port must be specified")
		}
		var err error
		transport, err = transports.OpenSerial(transports.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port: %w", err)
		}
	}

	return &Bus{
		transport:   transport,
		protocol:    NewProtocol(cfg.Protocol),
		timeout:     cfg.Timeout,
		turnaround:  cfg.TurnaroundDelay,
		minCmdGap:   cfg.MinCommandGap,
		lastCmdTime: time.Now(),
	}, nil
}

// Close closes the bus and releases resources.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.transport.Close()
}

// Protocol returns the protocol handler for this bus.
func (b *Bus) Protocol() *Protocol {
	return b.protocol
}

// Ping checks whether the servo with the given ID is alive. The servo
// answers with a single status byte; nil is returned only for a clean 0x00
// status. A non-zero status is reported as a ServoError carrying the flags.
func (b *Bus) Ping(ctx context.Context, id int) error {
	if err := b.validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.transport.Flush()

	if err := b.sendPacketLocked(b.protocol.PingPacket(byte(id))); err != nil {
		return &CommError{Op: "ping", Err: err}
	}

	params, err := b.receiveLocked(ctx, byte(id), 1)
	if err != nil {
		return &ServoError{ID: id, Op: "ping", Err: err}
	}

	if status := StatusError(params[0]); status.HasError() {
		return &ServoError{ID: id, Op: "ping", Status: status}
	}

	return nil
}

// ReadRegisters reads length bytes starting at startReg. Stale input is
// flushed first so a previous operation's unread trailing bytes cannot
// corrupt this response. The servo prefixes its register data with a status
// byte, which is stripped here.
func (b *Bus) ReadRegisters(ctx context.Context, id int, startReg byte, length int) ([]byte, error) {
	if err := b.validateID(id); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	return b.readRegistersLocked(ctx, byte(id), startReg, byte(length))
}

// WriteRegisters writes data starting at startReg, immediately or deferred
// according to mode.
//
// The protocol has no acknowledgement frame for writes: a nil return means
// the transport accepted the whole frame, not that the servo applied the
// value. A frame corrupted in transit without changing the byte count is
// undetectable here.
func (b *Bus) WriteRegisters(ctx context.Context, id int, startReg byte, data []byte, mode WriteMode) error {
	if err := b.validateID(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	return b.writeRegistersLocked(byte(id), startReg, data, mode)
}

// ReadByte reads a one-byte register.
func (b *Bus) ReadByte(ctx context.Context, id int, reg byte) (byte, error) {
	data, err := b.ReadRegisters(ctx, id, reg, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// ReadWord reads a two-byte register in protocol byte order.
func (b *Bus) ReadWord(ctx context.Context, id int, reg byte) (uint16, error) {
	data, err := b.ReadRegisters(ctx, id, reg, 2)
	if err != nil {
		return 0, err
	}
	return b.protocol.DecodeWord(data), nil
}

// WriteByte writes a one-byte register.
func (b *Bus) WriteByte(ctx context.Context, id int, reg byte, value byte, mode WriteMode) error {
	return b.WriteRegisters(ctx, id, reg, []byte{value}, mode)
}

// WriteWord writes a two-byte register in protocol byte order.
func (b *Bus) WriteWord(ctx context.Context, id int, reg byte, value uint16, mode WriteMode) error {
	return b.WriteRegisters(ctx, id, reg, b.protocol.EncodeWord(value), mode)
}

// Trigger broadcasts the ACTION instruction, releasing every staged deferred
// write. Devices apply their staged values independently on receipt, so the
// release is near-simultaneous rather than atomic across the bus. Broadcast
// instructions get no response.
func (b *Bus) Trigger(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	if err := b.sendPacketLocked(b.protocol.ActionPacket()); err != nil {
		return &CommError{Op: "trigger", Err: err}
	}

	return nil
}

// SyncWrite sends one broadcast frame carrying a blockWidth-byte payload for
// each listed servo, in input order. Fire and forget: there is no response
// and no per-device failure reporting.
func (b *Bus) SyncWrite(ctx context.Context, startReg byte, blockWidth int, ids []int, blocks [][]byte) error {
	if len(ids) == 0 {
		return errors.New("sync write requires at least one servo")
	}
	if len(ids) != len(blocks) {
		return fmt.Errorf("sync write: %d ids but %d blocks", len(ids), len(blocks))
	}

	byteIDs := make([]byte, len(ids))
	for i, id := range ids {
		if err := b.validateID(id); err != nil {
			return err
		}
		if len(blocks[i]) != blockWidth {
			return fmt.Errorf("servo %d: block length mismatch: expected %d, got %d", id, blockWidth, len(blocks[i]))
		}
		byteIDs[i] = byte(id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	packet := b.protocol.SyncWritePacket(startReg, byte(blockWidth), byteIDs, blocks)
	if err := b.sendPacketLocked(packet); err != nil {
		return &CommError{Op: "sync_write", Err: err}
	}

	return nil
}

// SyncWritePositions moves several servos in the same instant: one broadcast
// frame carries a position and speed for each servo, avoiding the per-device
// round-trip latency that would break synchronization. Each 6-byte block is
// position(2) + two zero filler bytes + speed(2); the filler covers the goal
// time registers sitting between position and speed in the control table.
func (b *Bus) SyncWritePositions(ctx context.Context, ids []int, positions []int, speeds []int) error {
	if len(ids) != len(positions) || len(ids) != len(speeds) {
		return fmt.Errorf("sync write positions: mismatched lengths (%d ids, %d positions, %d speeds)",
			len(ids), len(positions), len(speeds))
	}

	blocks := make([][]byte, len(ids))
	for i := range ids {
		block := make([]byte, 6)
		copy(block[0:2], b.protocol.EncodeWord(uint16(positions[i])))
		copy(block[4:6], b.protocol.EncodeWord(uint16(speeds[i])))
		blocks[i] = block
	}

	return b.SyncWrite(ctx, RegGoalPosition.Address, 6, ids, blocks)
}

// Detect sweeps IDs 0x00-0xFD in ascending order and returns the first one
// that answers ping. It confirms bus liveness at startup; it is not a full
// inventory — use Scan for that. Returns ErrNoResponse if nothing answers.
func (b *Bus) Detect(ctx context.Context) (int, error) {
	for id := 0; id <= int(MaxServoID); id++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		if err := b.Ping(ctx, id); err == nil {
			return id, nil
		}
	}
	return 0, ErrNoResponse
}

// Scan pings every ID in the range and returns those that answered.
func (b *Bus) Scan(ctx context.Context, startID, endID int) ([]int, error) {
	if startID < 0 || endID > int(MaxServoID) || startID > endID {
		return nil, fmt.Errorf("invalid ID range: %d to %d", startID, endID)
	}

	var found []int
	for id := startID; id <= endID; id++ {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		if err := b.Ping(ctx, id); err == nil {
			found = append(found, id)
		}
	}

	return found, nil
}

// Internal methods

func (b *Bus) validateID(id int) error {
	if id < 0 || id > int(MaxServoID) {
		return fmt.Errorf("%w: %d (valid range: 0-%d)", ErrInvalidID, id, MaxServoID)
	}
	return nil
}

func (b *Bus) enforceCommandGap() {
	elapsed := time.Since(b.lastCmdTime)
	if elapsed < b.minCmdGap {
		time.Sleep(b.minCmdGap - elapsed)
	}
}

// sendPacketLocked owns the transmit-enable line for the duration of the
// write: raise, send, lower, then wait the turnaround delay so the device's
// response is not mistaken for leftover transmit activity.
func (b *Bus) sendPacketLocked(packet []byte) error {
	b.enforceCommandGap()

	b.transport.SetTransmitEnabled(true)
	n, err := b.transport.Write(packet)
	b.transport.SetTransmitEnabled(false)

	b.lastCmdTime = time.Now()

	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(packet) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(packet))
	}

	time.Sleep(b.turnaround)

	return nil
}

func (b *Bus) readRegistersLocked(ctx context.Context, id, startReg, length byte) ([]byte, error) {
	b.transport.Flush()

	if err := b.sendPacketLocked(b.protocol.ReadPacket(id, startReg, length)); err != nil {
		return nil, &CommError{Op: "read", Err: err}
	}

	// The response carries a status byte ahead of the register data.
	params, err := b.receiveLocked(ctx, id, int(length)+1)
	if err != nil {
		return nil, &ServoError{ID: int(id), Op: "read", Err: err}
	}

	return params[1:], nil
}

func (b *Bus) writeRegistersLocked(id, startReg byte, data []byte, mode WriteMode) error {
	var packet []byte
	if mode == WriteDeferred {
		packet = b.protocol.RegWritePacket(id, startReg, data)
	} else {
		packet = b.protocol.WritePacket(id, startReg, data)
	}

	if err := b.sendPacketLocked(packet); err != nil {
		return &ServoError{ID: int(id), Op: "write", Err: err}
	}

	return nil
}

// receiveLocked reads exactly one response frame of paramCount parameters
// and validates it.
func (b *Bus) receiveLocked(ctx context.Context, wantID byte, paramCount int) ([]byte, error) {
	frame, err := b.readExactlyLocked(ctx, ResponseLength(paramCount))
	if err != nil {
		return nil, err
	}

	return b.protocol.ParseResponse(frame, wantID, paramCount)
}

func (b *Bus) readExactlyLocked(ctx context.Context, n int) ([]byte, error) {
	buffer := make([]byte, n)
	totalRead := 0
	deadline := time.Now().Add(b.timeout)

	for totalRead < n {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			if totalRead == 0 {
				return nil, ErrNoResponse
			}
			return nil, fmt.Errorf("%w: read %d of %d expected bytes", ErrTimeout, totalRead, n)
		}

		remaining := max(time.Until(deadline), 10*time.Millisecond)
		b.transport.SetReadTimeout(remaining)

		rd, err := b.transport.Read(buffer[totalRead:])
		if err != nil {
			if rd == 0 {
				time.Sleep(time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("read error: %w", err)
		}
		if rd == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		totalRead += rd
	}

	return buffer, nil
}
