// Package stservo implements the half-duplex serial bus protocol used by
// Feetech STS/SCS series servos: a single master addressing up to 253
// daisy-chained devices by one-byte ID, with framed request/response
// register access.
package stservo

import (
	"encoding/binary"
	"strings"
)

// Protocol version constants.
const (
	ProtocolSTS = iota // STS/SMS series: little-endian words
	ProtocolSCS        // SCS series: big-endian words
)

// Instruction codes per the Feetech protocol specification.
const (
	InstPing      byte = 0x01
	InstRead      byte = 0x02
	InstWrite     byte = 0x03
	InstRegWrite  byte = 0x04
	InstAction    byte = 0x05
	InstReset     byte = 0x06
	InstSyncWrite byte = 0x83
)

// Special ID values.
const (
	BroadcastID byte = 0xFE
	MaxServoID  byte = 0xFD
)

// Packet header bytes.
const (
	headerByte1 = 0xFF
	headerByte2 = 0xFF
)

// StatusError holds the error flags a servo reports in the status byte of a
// response.
type StatusError byte

const (
	ErrVoltage     StatusError = 1 << 0
	ErrAngleLimit  StatusError = 1 << 1
	ErrOverheat    StatusError = 1 << 2
	ErrRange       StatusError = 1 << 3
	ErrChecksum    StatusError = 1 << 4
	ErrOverload    StatusError = 1 << 5
	ErrInstruction StatusError = 1 << 6
)

func (e StatusError) Error() string {
	if e == 0 {
		return "no error"
	}

	var msgs []string
	if e&ErrVoltage != 0 {
		msgs = append(msgs, "voltage")
	}
	if e&ErrAngleLimit != 0 {
		msgs = append(msgs, "angle limit")
	}
	if e&ErrOverheat != 0 {
		msgs = append(msgs, "overheat")
	}
	if e&ErrRange != 0 {
		msgs = append(msgs, "range")
	}
	if e&ErrChecksum != 0 {
		msgs = append(msgs, "checksum")
	}
	if e&ErrOverload != 0 {
		msgs = append(msgs, "overload")
	}
	if e&ErrInstruction != 0 {
		msgs = append(msgs, "instruction")
	}

	return "servo status error: " + strings.Join(msgs, ", ")
}

// HasError returns true if any error flag is set.
func (e StatusError) HasError() bool {
	return e != 0
}

// Protocol handles packet encoding and response validation for a specific
// protocol version.
type Protocol struct {
	version   int
	byteOrder binary.ByteOrder
}

// NewProtocol creates a protocol handler for the specified version.
func NewProtocol(version int) *Protocol {
	p := &Protocol{version: version}
	if version == ProtocolSCS {
		p.byteOrder = binary.BigEndian
	} else {
		p.byteOrder = binary.LittleEndian
	}
	return p
}

// ByteOrder returns the byte order for multi-byte register values.
func (p *Protocol) ByteOrder() binary.ByteOrder {
	return p.byteOrder
}

// Version returns the protocol version.
func (p *Protocol) Version() int {
	return p.version
}

// EncodeWord converts a 16-bit value to bytes in protocol byte order.
func (p *Protocol) EncodeWord(value uint16) []byte {
	buf := make([]byte, 2)
	p.byteOrder.PutUint16(buf, value)
	return buf
}

// DecodeWord converts bytes to a 16-bit value using protocol byte order.
func (p *Protocol) DecodeWord(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return p.byteOrder.Uint16(data)
}

// Encode constructs a wire-format instruction packet:
// header(2) + id(1) + length(1) + instruction(1) + params(n) + checksum(1),
// where length = n+2 and the checksum is the inverted byte sum of everything
// from the ID onwards.
func (p *Protocol) Encode(id, instruction byte, params []byte) []byte {
	length := byte(len(params) + 2) // params + instruction + checksum

	buf := make([]byte, 0, 6+len(params))
	buf = append(buf, headerByte1, headerByte2)
	buf = append(buf, id)
	buf = append(buf, length)
	buf = append(buf, instruction)
	buf = append(buf, params...)

	buf = append(buf, checksum(buf[2:]))

	return buf
}

// ResponseLength returns the wire length of a response carrying paramCount
// parameter bytes: header(2) + id(1) + length(1) + params(n) + checksum(1).
func ResponseLength(paramCount int) int {
	return paramCount + 5
}

// ParseResponse validates a complete response frame read off the bus and
// returns its parameter bytes. The frame must be exactly
// ResponseLength(paramCount) bytes. Validation order: sync bytes, device ID,
// length field, checksum — each failure maps to its own sentinel so callers
// can tell a misaddressed frame from a corrupted one.
//
// The checksum is a single inverted byte sum, so it only rejects obviously
// truncated or misaddressed frames; a frame that validates may still carry
// implausible register values, which callers must treat as data.
func (p *Protocol) ParseResponse(frame []byte, wantID byte, paramCount int) ([]byte, error) {
	if len(frame) != ResponseLength(paramCount) {
		return nil, ErrShortResponse
	}
	if frame[0] != headerByte1 || frame[1] != headerByte2 {
		return nil, ErrMalformedHeader
	}
	if frame[2] != wantID {
		return nil, ErrAddressMismatch
	}
	if int(frame[3]) != paramCount+1 {
		return nil, ErrLengthMismatch
	}
	if checksum(frame[2:len(frame)-1]) != frame[len(frame)-1] {
		return nil, ErrChecksumMismatch
	}
	return frame[4 : 4+paramCount], nil
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}

// Instruction packet builders

// PingPacket creates a ping instruction packet.
func (p *Protocol) PingPacket(id byte) []byte {
	return p.Encode(id, InstPing, nil)
}

// ReadPacket creates a read instruction packet for length bytes starting at
// the given register address.
func (p *Protocol) ReadPacket(id, address, length byte) []byte {
	return p.Encode(id, InstRead, []byte{address, length})
}

// WritePacket creates an immediate write instruction packet.
func (p *Protocol) WritePacket(id, address byte, data []byte) []byte {
	params := make([]byte, 1+len(data))
	params[0] = address
	copy(params[1:], data)
	return p.Encode(id, InstWrite, params)
}

// RegWritePacket creates a deferred (staged) write instruction packet. The
// value only takes effect when a subsequent ACTION packet is broadcast.
func (p *Protocol) RegWritePacket(id, address byte, data []byte) []byte {
	params := make([]byte, 1+len(data))
	params[0] = address
	copy(params[1:], data)
	return p.Encode(id, InstRegWrite, params)
}

// ActionPacket creates the broadcast trigger packet that releases all staged
// deferred writes.
func (p *Protocol) ActionPacket() []byte {
	return p.Encode(BroadcastID, InstAction, nil)
}

// SyncWritePacket creates a broadcast sync write packet. Each block carries
// blockWidth data bytes for the servo with the matching ID; blocks appear on
// the wire in input order.
func (p *Protocol) SyncWritePacket(address, blockWidth byte, ids []byte, blocks [][]byte) []byte {
	params := make([]byte, 0, 2+len(ids)*(1+int(blockWidth)))
	params = append(params, address, blockWidth)
	for i, id := range ids {
		params = append(params, id)
		params = append(params, blocks[i]...)
	}
	return p.Encode(BroadcastID, InstSyncWrite, params)
}

// Sign-magnitude helpers. Feetech velocity registers use an explicit sign
// bit instead of two's complement.

func decodeSignMagnitude(value, signBit int) int {
	if signBit == 0 {
		return value
	}

	signMask := 1 << signBit
	if value&signMask != 0 {
		return -(value & (signMask - 1))
	}
	return value
}

func encodeSignMagnitude(value, signBit int) int {
	if signBit == 0 {
		return value
	}

	if value < 0 {
		signMask := 1 << signBit
		return (-value) | signMask
	}
	return value
}
