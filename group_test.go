package stservo

import (
	"bytes"
	"context"
	"testing"

	"github.com/botamochi6277/STS-servos/transports"
)

func TestServoGroup_SetPositionsWithSpeed(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2)

	err := group.SetPositionsWithSpeed(context.Background(), []int{100, 200}, []int{50, 50})
	if err != nil {
		t.Fatalf("SetPositionsWithSpeed failed: %v", err)
	}

	// Everything rides in one broadcast sync-write frame.
	expected := []byte{
		0xFF, 0xFF, 0xFE, 0x12, 0x83, 0x2A, 0x06,
		0x01, 0x64, 0x00, 0x00, 0x00, 0x32, 0x00,
		0x02, 0xC8, 0x00, 0x00, 0x00, 0x32, 0x00,
		0xA9,
	}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("sync write frame:\ngot  %X\nwant %X", mock.WriteData, expected)
	}
}

func TestServoGroup_SetPositionsLengthMismatch(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2, 3)

	if err := group.SetPositions(context.Background(), []int{100}); err == nil {
		t.Error("expected error for mismatched position count")
	}
	if err := group.SetPositionsWithSpeed(context.Background(), []int{1, 2, 3}, []int{1}); err == nil {
		t.Error("expected error for mismatched speed count")
	}
	if len(mock.WriteData) != 0 {
		t.Error("frame written despite invalid input")
	}
}

func TestServoGroup_StagePositionsAndTrigger(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2)
	ctx := context.Background()

	if err := group.StagePositions(ctx, []int{512, 1024}); err != nil {
		t.Fatalf("StagePositions failed: %v", err)
	}
	if err := bus.Trigger(ctx); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	// Two REG_WRITE frames stage the targets; the broadcast ACTION frame
	// releases both at once.
	expected := []byte{
		0xFF, 0xFF, 0x01, 0x05, 0x04, 0x2A, 0x00, 0x02, 0xC9,
		0xFF, 0xFF, 0x02, 0x05, 0x04, 0x2A, 0x00, 0x04, 0xC6,
		0xFF, 0xFF, 0xFE, 0x02, 0x05, 0xFA,
	}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("staged sequence:\ngot  %X\nwant %X", mock.WriteData, expected)
	}
}

func TestServoGroup_EnableAll(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2)

	if err := group.EnableAll(context.Background()); err != nil {
		t.Fatalf("EnableAll failed: %v", err)
	}

	expected := []byte{0xFF, 0xFF, 0xFE, 0x08, 0x83, 0x28, 0x01, 0x01, 0x01, 0x02, 0x01, 0x48}
	if !bytes.Equal(mock.WriteData, expected) {
		t.Errorf("enable frame: got %X, want %X", mock.WriteData, expected)
	}
}

func TestServoGroup_DisableAll(t *testing.T) {
	mock := &transports.MockTransport{}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2)

	if err := group.DisableAll(context.Background()); err != nil {
		t.Fatalf("DisableAll failed: %v", err)
	}

	// Same shape as enable, torque value 0 per block.
	if mock.WriteData[7] != 0x01 || mock.WriteData[8] != 0x00 {
		t.Errorf("block 0: got id=%02X value=%02X, want id=01 value=00",
			mock.WriteData[7], mock.WriteData[8])
	}
}

func TestServoGroup_Positions(t *testing.T) {
	// Sequential reads: servo 1 at 100, servo 2 at 200.
	mock := &transports.MockTransport{
		ReadData: []byte{
			0xFF, 0xFF, 0x01, 0x04, 0x00, 0x64, 0x00, 0x96,
			0xFF, 0xFF, 0x02, 0x04, 0x00, 0xC8, 0x00, 0x31,
		},
	}
	bus := newTestBus(t, mock)
	group := NewServoGroupByIDs(bus, 1, 2)

	positions, err := group.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(positions) != 2 || positions[0] != 100 || positions[1] != 200 {
		t.Errorf("positions: got %v, want [100 200]", positions)
	}
}

func TestServoGroup_ServoByID(t *testing.T) {
	bus := newTestBus(t, &transports.MockTransport{})
	group := NewServoGroupByIDs(bus, 3, 7)

	if s := group.ServoByID(7); s == nil || s.ID() != 7 {
		t.Errorf("ServoByID(7): got %v", s)
	}
	if s := group.ServoByID(99); s != nil {
		t.Errorf("ServoByID(99): got %v, want nil", s)
	}
}
