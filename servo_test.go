package stservo

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/botamochi6277/STS-servos/transports"
)

func TestServo_Position(t *testing.T) {
	// Present position -10 = 0xFFF6 little-endian, two's complement.
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0xF6, 0xFF, 0x05},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	pos, err := servo.Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != -10 {
		t.Errorf("position: got %d, want -10", pos)
	}
}

func TestServo_Speed(t *testing.T) {
	// Present speed -100: sign-magnitude 0x8064, little-endian 64 80.
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x64, 0x80, 0x16},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	speed, err := servo.Speed(context.Background())
	if err != nil {
		t.Fatalf("Speed failed: %v", err)
	}
	if speed != -100 {
		t.Errorf("speed: got %d, want -100", speed)
	}
}

func TestServo_Current(t *testing.T) {
	// Raw current 200 counts at 6.5 mA per count = 1.3 A.
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0xC8, 0x00, 0x32},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	current, err := servo.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current < 1.2999 || current > 1.3001 {
		t.Errorf("current: got %f, want 1.3", current)
	}
}

func TestServo_Temperature(t *testing.T) {
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x03, 0x00, 0x23, 0xD8},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	temp, err := servo.Temperature(context.Background())
	if err != nil {
		t.Fatalf("Temperature failed: %v", err)
	}
	if temp != 35 {
		t.Errorf("temperature: got %d, want 35", temp)
	}
}

func TestServo_Moving(t *testing.T) {
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x01, 0x03, 0x00, 0x01, 0xFA},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	moving, err := servo.Moving(context.Background())
	if err != nil {
		t.Fatalf("Moving failed: %v", err)
	}
	if !moving {
		t.Error("expected moving")
	}
}

func TestServo_SetTargetPosition(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	err := servo.SetTargetPosition(context.Background(), 2048, 1000, WriteImmediate)
	if err != nil {
		t.Fatalf("SetTargetPosition failed: %v", err)
	}

	// Position 2048 + two zero filler bytes + speed 1000, little-endian.
	expected := []byte{0xFF, 0xFF, 0x01, 0x09, 0x03, 0x2A, 0x00, 0x08, 0x00, 0x00, 0xE8, 0x03, 0xD5}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("position frame:\ngot  %X\nwant %X", mock.WriteData, expected)
	}
}

func TestServo_SetTargetPositionDeferred(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	err := servo.SetTargetPosition(context.Background(), 2048, 1000, WriteDeferred)
	if err != nil {
		t.Fatalf("SetTargetPosition failed: %v", err)
	}

	if mock.WriteData[4] != InstRegWrite {
		t.Errorf("instruction: got %02X, want %02X", mock.WriteData[4], InstRegWrite)
	}
}

func TestServo_SetTargetVelocity(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	err := servo.SetTargetVelocity(context.Background(), -300, WriteImmediate)
	if err != nil {
		t.Fatalf("SetTargetVelocity failed: %v", err)
	}

	// -300 encodes as 0x8000|300 = 0x812C, little-endian 2C 81.
	expected := []byte{0xFF, 0xFF, 0x01, 0x05, 0x03, 0x2E, 0x2C, 0x81, 0x1B}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("velocity frame: got %X, want %X", mock.WriteData, expected)
	}
}

func TestServo_SetTargetVelocityOutOfRange(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	// -32768 has no sign-magnitude representation.
	err := servo.SetTargetVelocity(context.Background(), -32768, WriteImmediate)
	if err == nil {
		t.Fatal("expected error for velocity -32768")
	}
	if len(mock.WriteData) != 0 {
		t.Error("frame written despite invalid velocity")
	}
}

func TestServo_SetID(t *testing.T) {
	// Reassign 5 -> 10. The first ping of ID 10 must go unanswered (ID is
	// free); the verification ping after the rewrite gets a reply.
	mock := &transports.MockTransport{}
	mock.ReadFunc = func(p []byte) (int, error) {
		// ping(6) + unlock(8) + write id(8) + lock(8) + ping(6) = 36
		if len(mock.WriteData) < 36 {
			return 0, nil
		}
		return copy(p, []byte{0xFF, 0xFF, 0x0A, 0x02, 0x00, 0xF3}), nil
	}

	bus, err := NewBus(BusConfig{
		Transport:       mock,
		Timeout:         5 * time.Millisecond,
		TurnaroundDelay: time.Microsecond,
		MinCommandGap:   time.Microsecond,
	})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	defer bus.Close()

	servo := NewServo(bus, 5, nil)
	if err := servo.SetID(context.Background(), 10); err != nil {
		t.Fatalf("SetID failed: %v", err)
	}
	if servo.ID() != 10 {
		t.Errorf("ID after reassign: got %d, want 10", servo.ID())
	}

	expected := []byte{
		0xFF, 0xFF, 0x0A, 0x02, 0x01, 0xF2, // collision-check ping of ID 10
		0xFF, 0xFF, 0x05, 0x04, 0x03, 0x37, 0x00, 0xBC, // unlock EEPROM on ID 5
		0xFF, 0xFF, 0x05, 0x04, 0x03, 0x05, 0x0A, 0xE4, // write ID register
		0xFF, 0xFF, 0x0A, 0x04, 0x03, 0x37, 0x01, 0xB6, // lock via the NEW ID
		0xFF, 0xFF, 0x0A, 0x02, 0x01, 0xF2, // verification ping
	}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("SetID sequence:\ngot  %X\nwant %X", mock.WriteData, expected)
	}
}

func TestServo_SetIDCollision(t *testing.T) {
	// ID 10 is already taken: it answers the collision-check ping, so the
	// reassign must stop before touching the EEPROM.
	mock := &transports.MockTransport{
		ReadData: []byte{0xFF, 0xFF, 0x0A, 0x02, 0x00, 0xF3},
	}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 5, nil)

	err := servo.SetID(context.Background(), 10)
	if !errors.Is(err, ErrIDInUse) {
		t.Fatalf("got %v, want ErrIDInUse", err)
	}
	if servo.ID() != 5 {
		t.Errorf("ID changed despite collision: got %d", servo.ID())
	}
	if len(mock.WriteData) != 6 {
		t.Errorf("expected only the ping frame on the wire, got %X", mock.WriteData)
	}
}

func TestServo_SetIDInvalid(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 5, nil)

	for _, id := range []int{int(BroadcastID), 255, -1} {
		if err := servo.SetID(context.Background(), id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("SetID(%d): got %v, want ErrInvalidID", id, err)
		}
	}
	if len(mock.WriteData) != 0 {
		t.Error("frame written despite invalid ID")
	}
}

func TestServo_SetPositionOffset(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	err := servo.SetPositionOffset(context.Background(), -100)
	if err != nil {
		t.Fatalf("SetPositionOffset failed: %v", err)
	}

	// unlock, write -100 (0xFF9C little-endian), lock
	expected := []byte{
		0xFF, 0xFF, 0x01, 0x04, 0x03, 0x37, 0x00, 0xC0,
		0xFF, 0xFF, 0x01, 0x05, 0x03, 0x1F, 0x9C, 0xFF, 0x3C,
		0xFF, 0xFF, 0x01, 0x04, 0x03, 0x37, 0x01, 0xBF,
	}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("offset sequence:\ngot  %X\nwant %X", mock.WriteData, expected)
	}
}

func TestServo_SetPositionOffsetOutOfRange(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)

	err := servo.SetPositionOffset(context.Background(), 0x8000)
	if err == nil {
		t.Fatal("expected error for offset out of int16 range")
	}
	if len(mock.WriteData) != 0 {
		t.Error("frame written despite invalid offset")
	}
}

func TestServo_NamedRegisters(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	servo := NewServo(bus, 1, nil)
	ctx := context.Background()

	if _, err := servo.ReadRegister(ctx, "no_such_register"); err == nil {
		t.Error("expected error for unknown register name")
	}
	if err := servo.WriteRegister(ctx, "present_position", []byte{0, 0}, WriteImmediate); err == nil {
		t.Error("expected error for read-only register")
	}
	if err := servo.WriteRegister(ctx, "goal_position", []byte{0}, WriteImmediate); err == nil {
		t.Error("expected error for wrong data size")
	}
	if len(mock.WriteData) != 0 {
		t.Error("frame written despite rejected register access")
	}
}

func TestServo_DefaultModel(t *testing.T) {
	servo := NewServo(nil, 1, nil)
	if servo.Model() == nil || servo.Model().Name != "sts3215" {
		t.Errorf("default model: got %v, want sts3215", servo.Model())
	}
}
